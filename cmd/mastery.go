package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/adaptiq/internal/mastery"
	"github.com/abhisek/adaptiq/internal/ui/report"
)

var masteryCmd = &cobra.Command{
	Use:   "mastery",
	Short: "Verify concept mastery from response history",
}

var masteryCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate the mastery criteria for a learner and concept",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		conceptID, _ := cmd.Flags().GetString("concept")

		graph, err := loadGraph()
		if err != nil {
			return err
		}
		concept, err := graph.Concept(conceptID)
		if err != nil {
			return err
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		responses, err := st.Responses().RecentResponses(cmd.Context(), user, conceptID, cfg.Session.MasteryHistoryLimit)
		if err != nil {
			return fmt.Errorf("load responses: %w", err)
		}

		r := mastery.NewVerifier(cfg.Mastery).Check(responses, concept.Complexity)
		return render(cmd, r, func() string { return report.Mastery(r) })
	},
}

func init() {
	masteryCheckCmd.Flags().String("user", "", "Learner ID")
	masteryCheckCmd.Flags().String("concept", "", "Concept ID from the catalog")
	_ = masteryCheckCmd.MarkFlagRequired("user")
	_ = masteryCheckCmd.MarkFlagRequired("concept")

	masteryCmd.AddCommand(masteryCheckCmd)
}
