package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	"charm.land/lipgloss/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/abhisek/adaptiq/internal/conceptgraph"
	"github.com/abhisek/adaptiq/internal/config"
	"github.com/abhisek/adaptiq/internal/difficulty"
	"github.com/abhisek/adaptiq/internal/followup"
	"github.com/abhisek/adaptiq/internal/irt"
	"github.com/abhisek/adaptiq/internal/mastery"
	"github.com/abhisek/adaptiq/internal/session"
	"github.com/abhisek/adaptiq/internal/store"
)

var (
	verbose bool
	jsonOut bool

	cfg    = config.DefaultConfig()
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "adaptiq",
	Short: "Adaptive assessment engine",
	Long: `adaptiq runs adaptive assessment sessions: it picks a starting difficulty
from a learner's history, adjusts it item by item, estimates ability with a
Rasch model, routes follow-ups through a concept graph and verifies mastery.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("db", "", "Database DSN or SQLite file path (overrides ADAPTIQ_DSN)")
	pf.String("driver", "", "Database driver: sqlite or postgres (overrides ADAPTIQ_DB_DRIVER)")
	pf.String("config", "", "Path to a YAML config file")
	pf.String("catalog", "", "Path to the YAML concept catalog (overrides ADAPTIQ_CATALOG)")
	pf.String("env-file", ".env", "Dotenv file to load before reading ADAPTIQ_* variables")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	pf.BoolVar(&jsonOut, "json", false, "Print results as JSON")

	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(conceptsCmd)
	rootCmd.AddCommand(masteryCmd)
	rootCmd.AddCommand(followupCmd)
	rootCmd.AddCommand(irtCmd)
	rootCmd.AddCommand(responsesCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(versionCmd)
}

// setup loads configuration in priority order (defaults, config file,
// environment, flags) and builds the logger.
func setup(cmd *cobra.Command, args []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	path, _ := cmd.Flags().GetString("config")
	c, err := config.Load(path)
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("driver"); v != "" {
		c.Store.Driver = v
	}
	if v, _ := cmd.Flags().GetString("db"); v != "" {
		c.Store.DSN = v
	}
	if v, _ := cmd.Flags().GetString("catalog"); v != "" {
		c.CatalogPath = v
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg = c

	logger, err = newLogger(c.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

func newLogger(lc config.LoggingConfig) (*zap.Logger, error) {
	level, err := lc.ZapLevel()
	if err != nil {
		return nil, err
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// openStore opens and migrates the configured database.
func openStore() (*store.Store, error) {
	dsn := cfg.Store.DSN
	if dsn == "" {
		p, err := store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve database path: %w", err)
		}
		dsn = p
	}
	s, err := store.Open(cfg.Store.Driver, dsn, store.WithLogger(logger.Named("store")))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return s, nil
}

func loadGraph() (*conceptgraph.Graph, error) {
	if cfg.CatalogPath == "" {
		return nil, errors.New("no concept catalog configured (use --catalog or ADAPTIQ_CATALOG)")
	}
	g, err := conceptgraph.LoadFile(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load concept catalog: %w", err)
	}
	return g, nil
}

func newOrchestrator(s *store.Store, graph *conceptgraph.Graph) *session.Orchestrator {
	l := logger.Named("session")
	return session.New(s.Sessions(), s.Responses(), graph,
		session.WithConfig(cfg.Session),
		session.WithLogger(l),
		session.WithCalibrator(difficulty.New(cfg.Difficulty, difficulty.WithLogger(l))),
		session.WithEstimator(irt.New(cfg.IRT)),
		session.WithRouter(followup.New(cfg.FollowUp, graph, l)),
		session.WithVerifier(mastery.NewVerifier(cfg.Mastery)),
	)
}

// render prints v as JSON under --json, and the styled view otherwise.
func render(cmd *cobra.Command, v any, view func() string) error {
	out := cmd.OutOrStdout()
	if jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := lipgloss.Fprintln(out, view())
	return err
}
