package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fsledger/internal/output"
	"github.com/Aman-CERP/fsledger/internal/service"
)

func newStatsCmd() *cobra.Command {
	var (
		watcherID  string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show ledger statistics",
		Long: `Show event counts by type, category and priority, the recorded date
range and the total number of bytes changed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openReadApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(context.Background()) }()

			st, err := a.svc.GetEventStats(service.StatsRequest{WatcherID: watcherID})
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), st)
			}
			output.New(cmd.OutOrStdout()).Stats(st)
			return nil
		},
	}

	cmd.Flags().StringVarP(&watcherID, "watcher", "w", "", "Restrict to one watcher ID")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
