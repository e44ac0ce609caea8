package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/adaptiq/internal/exchange"
	"github.com/abhisek/adaptiq/internal/history"
	"github.com/abhisek/adaptiq/internal/ui/report"
)

var responsesCmd = &cobra.Command{
	Use:   "responses",
	Short: "Manage learner response history",
}

var responsesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record one scored response",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		concept, _ := cmd.Flags().GetString("concept")
		typ, _ := cmd.Flags().GetString("type")
		score, _ := cmd.Flags().GetInt("score")
		difficulty, _ := cmd.Flags().GetInt("difficulty")
		date, _ := cmd.Flags().GetString("date")

		rt, err := history.ParseResponseType(typ)
		if err != nil {
			return err
		}
		confidence, err := confidenceFlag(cmd)
		if err != nil {
			return err
		}
		r := history.Response{
			UserID:     user,
			ConceptID:  concept,
			Type:       rt,
			Score:      score,
			Difficulty: difficulty,
			Date:       time.Now().UTC(),
		}
		if date != "" {
			if r.Date, err = time.Parse(time.RFC3339, date); err != nil {
				return fmt.Errorf("invalid --date %q: %w", date, err)
			}
		}
		if confidence != nil {
			r.CalibrationDelta = *confidence - score
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		if err := recordResponse(cmd.Context(), st, r); err != nil {
			return err
		}
		rs := []history.Response{r}
		return render(cmd, rs, func() string { return report.Responses(rs) })
	},
}

var responsesImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import response history from an XLSX or CSV file",
	Long: `Import response history from a spreadsheet. The default layout matches
"adaptiq export responses": user, concept, type, score, date, difficulty and
calibration in columns A-G with a header row.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ic := exchange.DefaultImportConfig()
		ic.FilePath = args[0]
		ic.SheetName, _ = cmd.Flags().GetString("sheet")
		ic.StartRow, _ = cmd.Flags().GetInt("start-row")
		ic.DefaultUserID, _ = cmd.Flags().GetString("user")

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := cmd.Context()
		res, err := exchange.ImportResponses(ctx, ic, st.Responses())
		if err != nil {
			return fmt.Errorf("import responses: %w", err)
		}

		now := time.Now().UTC()
		for _, key := range learnerConcepts(res.Responses) {
			if _, err := st.Responses().RefreshCalibration(ctx, key[0], key[1], now); err != nil {
				return fmt.Errorf("refresh calibration: %w", err)
			}
		}
		logger.Info("responses imported",
			zap.String("file", ic.FilePath),
			zap.Int("imported", res.Imported),
			zap.Int("skipped", res.Skipped))

		return render(cmd, res, func() string {
			return report.Import(res.TotalProcessed, res.Imported, res.Skipped, res.Errors)
		})
	},
}

var responsesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded responses, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := queryOpts(cmd)
		if err != nil {
			return err
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		rs, err := st.Responses().List(cmd.Context(), opts)
		if err != nil {
			return fmt.Errorf("list responses: %w", err)
		}
		return render(cmd, rs, func() string { return report.Responses(rs) })
	},
}

// learnerConcepts returns the distinct user/concept pairs in rs, in first
// seen order.
func learnerConcepts(rs []history.Response) [][2]string {
	seen := make(map[[2]string]bool)
	var keys [][2]string
	for _, r := range rs {
		k := [2]string{r.UserID, r.ConceptID}
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	return keys
}

func init() {
	responsesAddCmd.Flags().String("user", "", "Learner ID")
	responsesAddCmd.Flags().String("concept", "", "Concept ID")
	responsesAddCmd.Flags().String("type", "", "Response type (e.g. RECALL, APPLICATION)")
	responsesAddCmd.Flags().Int("score", 0, "Score (0-100)")
	responsesAddCmd.Flags().Int("difficulty", 50, "Item difficulty (0-100)")
	responsesAddCmd.Flags().Int("confidence", 0, "Self-rated confidence (0-100)")
	responsesAddCmd.Flags().String("date", "", "Response time in RFC 3339 (default now)")
	for _, f := range []string{"user", "concept", "type", "score"} {
		_ = responsesAddCmd.MarkFlagRequired(f)
	}

	responsesImportCmd.Flags().String("sheet", "", "Sheet to read (default first sheet)")
	responsesImportCmd.Flags().Int("start-row", 2, "First data row, 1-based")
	responsesImportCmd.Flags().String("user", "", "Learner ID for rows without one")

	addFilterFlags(responsesListCmd, 50)

	responsesCmd.AddCommand(responsesAddCmd)
	responsesCmd.AddCommand(responsesImportCmd)
	responsesCmd.AddCommand(responsesListCmd)
}
