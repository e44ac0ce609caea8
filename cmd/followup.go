package cmd

import (
	"github.com/spf13/cobra"

	"github.com/abhisek/adaptiq/internal/followup"
	"github.com/abhisek/adaptiq/internal/ui/report"
)

var followupCmd = &cobra.Command{
	Use:   "followup",
	Short: "Route follow-up items through the concept graph",
}

var followupRouteCmd = &cobra.Command{
	Use:   "route",
	Short: "Decide whether a scored item needs a follow-up",
	RunE: func(cmd *cobra.Command, args []string) error {
		concept, _ := cmd.Flags().GetString("concept")
		score, _ := cmd.Flags().GetInt("score")
		used, _ := cmd.Flags().GetInt("used")

		graph, err := loadGraph()
		if err != nil {
			return err
		}
		d, err := followup.New(cfg.FollowUp, graph, logger.Named("followup")).Route(concept, score, used)
		if err != nil {
			return err
		}
		return render(cmd, d, func() string { return report.FollowUp(d) })
	},
}

func init() {
	followupRouteCmd.Flags().String("concept", "", "Concept of the answered item")
	followupRouteCmd.Flags().Int("score", 0, "Score of the answered item (0-100)")
	followupRouteCmd.Flags().Int("used", 0, "Follow-ups already issued for the original question")
	_ = followupRouteCmd.MarkFlagRequired("concept")
	_ = followupRouteCmd.MarkFlagRequired("score")

	followupCmd.AddCommand(followupRouteCmd)
}
