package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/adaptiq/internal/conceptgraph"
	"github.com/abhisek/adaptiq/internal/ui/report"
)

var conceptsCmd = &cobra.Command{
	Use:   "concepts",
	Short: "Browse the concept catalog",
}

var conceptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List concepts with prerequisites before the concepts that need them",
	RunE: func(cmd *cobra.Command, args []string) error {
		course, _ := cmd.Flags().GetString("course")

		graph, err := loadGraph()
		if err != nil {
			return err
		}

		var concepts []conceptgraph.Concept
		for _, c := range graph.TopoOrder() {
			if course == "" || c.CourseID == course {
				concepts = append(concepts, c)
			}
		}
		if course != "" && len(concepts) == 0 {
			return fmt.Errorf("no concepts found for course %q", course)
		}
		return render(cmd, concepts, func() string { return report.Concepts(concepts) })
	},
}

func init() {
	conceptsListCmd.Flags().String("course", "", "Filter by course ID")

	conceptsCmd.AddCommand(conceptsListCmd)
}
