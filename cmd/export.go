package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/adaptiq/internal/exchange"
	"github.com/abhisek/adaptiq/internal/ui/theme"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export sessions or response history to XLSX",
}

var exportSessionsCmd = &cobra.Command{
	Use:   "sessions <file.xlsx>",
	Short: "Export sessions and their trajectories",
	Args:  cobra.ExactArgs(1),
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

		sessions, err := st.Sessions().ListSessions(cmd.Context(), opts)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		if err := exchange.ExportSessions(args[0], sessions); err != nil {
			return err
		}
		return exported(cmd, args[0], len(sessions), "sessions")
	},
}

var exportResponsesCmd = &cobra.Command{
	Use:   "responses <file.xlsx>",
	Short: "Export response history in the import layout",
	Args:  cobra.ExactArgs(1),
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
		if err := exchange.ExportResponses(args[0], rs); err != nil {
			return err
		}
		return exported(cmd, args[0], len(rs), "responses")
	},
}

func exported(cmd *cobra.Command, path string, n int, what string) error {
	out := struct {
		Path  string `json:"path"`
		Count int    `json:"count"`
	}{path, n}
	return render(cmd, out, func() string {
		return theme.Good.Render(fmt.Sprintf("Exported %d %s to %s", n, what, path))
	})
}

func init() {
	addFilterFlags(exportSessionsCmd, 0)
	addFilterFlags(exportResponsesCmd, 0)

	exportCmd.AddCommand(exportSessionsCmd)
	exportCmd.AddCommand(exportResponsesCmd)
}
