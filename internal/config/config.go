// Package config aggregates engine, store and logging settings and loads
// them from YAML files and ADAPTIQ_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/abhisek/adaptiq/internal/difficulty"
	"github.com/abhisek/adaptiq/internal/followup"
	"github.com/abhisek/adaptiq/internal/irt"
	"github.com/abhisek/adaptiq/internal/mastery"
	"github.com/abhisek/adaptiq/internal/session"
	"github.com/abhisek/adaptiq/internal/store"
)

// Config holds all adaptiq configuration.
type Config struct {
	Store StoreConfig `yaml:"store"`

	// CatalogPath points to the YAML concept catalog.
	CatalogPath string `yaml:"catalog"`

	IRT        irt.Config        `yaml:"irt"`
	Difficulty difficulty.Config `yaml:"difficulty"`
	FollowUp   followup.Config   `yaml:"followup"`
	Mastery    mastery.Config    `yaml:"mastery"`
	Session    session.Config    `yaml:"session"`

	Logging LoggingConfig `yaml:"logging"`
}

// StoreConfig selects the database.
type StoreConfig struct {
	Driver string `yaml:"driver"` // sqlite, postgres

	// DSN is the data source name. Empty means the default SQLite path.
	DSN string `yaml:"dsn"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// ZapLevel parses Level.
func (l LoggingConfig) ZapLevel() (zapcore.Level, error) {
	if l.Level == "" {
		return zapcore.InfoLevel, nil
	}
	return zapcore.ParseLevel(l.Level)
}

// DefaultConfig returns the standard configuration.
func DefaultConfig() Config {
	return Config{
		Store: StoreConfig{
			Driver: store.DriverSQLite,
		},
		IRT:        irt.DefaultConfig(),
		Difficulty: difficulty.DefaultConfig(),
		FollowUp:   followup.DefaultConfig(),
		Mastery:    mastery.DefaultConfig(),
		Session:    session.DefaultConfig(),
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFile overlays the YAML file at path onto the defaults. Keys absent
// from the file keep their default values; unknown keys are an error.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ConfigFromEnv builds a Config from environment variables, falling back
// to defaults for unset values.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads the file at path (skipped when path is empty) and then applies
// environment overrides. Environment variables win over the file.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = LoadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnvOverrides applies ADAPTIQ_* environment variables.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("ADAPTIQ_DB_DRIVER"); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv("ADAPTIQ_DSN"); v != "" {
		c.Store.DSN = v
	}
	if v := os.Getenv("ADAPTIQ_CATALOG"); v != "" {
		c.CatalogPath = v
	}
	if v := os.Getenv("ADAPTIQ_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	var errs []error
	envInt("ADAPTIQ_DEFAULT_DIFFICULTY", &c.Difficulty.DefaultDifficulty, &errs)
	envInt("ADAPTIQ_ADJUSTMENT_BUDGET", &c.Difficulty.AdjustmentBudget, &errs)
	envInt("ADAPTIQ_FOLLOWUP_BUDGET", &c.FollowUp.Budget, &errs)
	envInt("ADAPTIQ_FATIGUE_THRESHOLD", &c.Session.FatigueThreshold, &errs)
	envInt("ADAPTIQ_BASELINE_QUESTIONS", &c.Session.BaselineQuestions, &errs)
	if v := os.Getenv("ADAPTIQ_MAX_DURATION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("ADAPTIQ_MAX_DURATION: %w", err))
		} else {
			c.Session.MaxDuration = d
		}
	}
	return errors.Join(errs...)
}

func envInt(key string, dst *int, errs *[]error) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = n
}

// Validate reports every setting outside its usable range.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Store.Driver == store.DriverSQLite || c.Store.Driver == store.DriverPostgres,
		"store.driver: unknown driver %q (valid: %s, %s)", c.Store.Driver, store.DriverSQLite, store.DriverPostgres)
	check(c.Store.Driver != store.DriverPostgres || c.Store.DSN != "",
		"store.dsn: required for the postgres driver")

	check(c.IRT.MaxIterations > 0, "irt.max_iterations: must be positive, got %d", c.IRT.MaxIterations)
	check(c.IRT.Tolerance > 0, "irt.tolerance: must be positive, got %v", c.IRT.Tolerance)

	d := c.Difficulty
	check(d.DefaultDifficulty >= 0 && d.DefaultDifficulty <= 100,
		"difficulty.default_difficulty: %d outside [0, 100]", d.DefaultDifficulty)
	check(d.HistoryWindow >= 1, "difficulty.history_window: need at least 1, got %d", d.HistoryWindow)
	check(d.CalibrationWindows >= 1, "difficulty.calibration_windows: need at least 1, got %d", d.CalibrationWindows)
	check(d.DecayFactor > 0 && d.DecayFactor <= 1, "difficulty.decay_factor: %v outside (0, 1]", d.DecayFactor)
	check(d.LowScore <= d.HighScore, "difficulty: low_score %d above high_score %d", d.LowScore, d.HighScore)
	check(d.AdjustmentBudget >= 0, "difficulty.adjustment_budget: must not be negative")
	check(d.Step > 0, "difficulty.step: must be positive, got %d", d.Step)

	f := c.FollowUp
	check(f.Budget >= 0, "followup.budget: must not be negative")
	check(f.LowScore <= f.HighScore, "followup: low_score %d above high_score %d", f.LowScore, f.HighScore)

	check(c.Mastery.ConsecutiveRequired > 0, "mastery.consecutive_required: must be positive")
	check(c.Mastery.MinTypes > 0, "mastery.min_types: must be positive")
	check(c.Mastery.MinCalibrated >= 1, "mastery.min_calibrated: need at least 1, got %d", c.Mastery.MinCalibrated)

	s := c.Session
	check(s.FatigueThreshold > 0, "session.fatigue_threshold: must be positive, got %d", s.FatigueThreshold)
	check(s.MaxDuration > 0, "session.max_duration: must be positive, got %s", s.MaxDuration)
	check(s.BaselineQuestions > 0, "session.baseline_questions: must be positive, got %d", s.BaselineQuestions)
	check(s.MinRecalibrationEntries >= 2, "session.min_recalibration_entries: need at least 2, got %d", s.MinRecalibrationEntries)

	if _, err := c.Logging.ZapLevel(); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	return errors.Join(errs...)
}
