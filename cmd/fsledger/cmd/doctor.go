package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fsledger/internal/config"
	"github.com/Aman-CERP/fsledger/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the system can run fsledger",
		Long: `Check data directory access, free disk space, file descriptor and
inotify limits, and whether another process holds the ledger.

'fsledger serve' runs the same checks once per data directory.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			checker := preflight.New(
				preflight.WithVerbose(verbose),
				preflight.WithOutput(cmd.OutOrStdout()),
			)
			results := checker.RunAll(cmd.Context(), preflightTarget(cfg))

			if jsonOutput {
				if err := writeJSON(cmd.OutOrStdout(), map[string]any{
					"status": checker.SummaryStatus(results),
					"checks": results,
				}); err != nil {
					return err
				}
			} else {
				checker.PrintResults(results)
			}

			if checker.HasCriticalFailures(results) {
				return errors.New("system check failed")
			}
			return preflight.MarkPassed(config.ExpandHome(cfg.DataDir))
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show details for every check")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func preflightTarget(cfg *config.Config) preflight.Target {
	return preflight.Target{
		DataDir:    config.ExpandHome(cfg.DataDir),
		LedgerPath: cfg.LedgerPath(),
	}
}
