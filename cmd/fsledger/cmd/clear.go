package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fsledger/internal/config"
	fserrors "github.com/Aman-CERP/fsledger/internal/errors"
	"github.com/Aman-CERP/fsledger/internal/output"
	"github.com/Aman-CERP/fsledger/internal/service"
)

func newClearCmd() *cobra.Command {
	var before string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove events older than a date",
		Long: `Remove every event strictly before --before and rewrite the ledger.

The ledger must not be in use by 'fsledger serve' or 'fsledger watch'. While
the server runs, use its clear_events tool instead.`,
		Example: `  fsledger clear --before 2024-01-01`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runClear(cmd, cfg, before)
		},
	}

	cmd.Flags().StringVar(&before, "before", "", "Remove events before this time (RFC3339 or YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("before")

	return cmd
}

func runClear(cmd *cobra.Command, cfg *config.Config, before string) error {
	a, err := openApp(cfg, modeWrite, nil)
	if err != nil {
		var fe *fserrors.FsError
		if errors.As(err, &fe) && fe.Code == fserrors.ErrCodeLedgerLocked {
			return fe.WithSuggestion("Stop 'fsledger serve' or 'fsledger watch', or call the clear_events tool through the server")
		}
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	res, err := a.svc.ClearEvents(service.ClearRequest{BeforeDate: before})
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	out.Successf("Removed %d events", res.DeletedCount)
	out.Statusf("📒", "%d events remain in %s", res.RemainingCount, a.ledger.Path())
	return nil
}
