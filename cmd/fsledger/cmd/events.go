package cmd

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fsledger/internal/output"
	"github.com/Aman-CERP/fsledger/internal/service"
)

// filterFlags are shared by events and export.
type filterFlags struct {
	since     string
	until     string
	eventType string
	watcherID string
	category  string
	priority  string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.since, "since", "", "Only events at or after this time (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.until, "until", "", "Only events before this time (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().StringVarP(&f.eventType, "type", "t", "", "Event type: created, modified, deleted, renamed")
	cmd.Flags().StringVarP(&f.watcherID, "watcher", "w", "", "Only events of this watcher ID")
	cmd.Flags().StringVar(&f.category, "category", "", "File category: code, document, config, data, prompt, model, unknown")
	cmd.Flags().StringVar(&f.priority, "priority", "", "Priority: low, medium, high, critical")
}

func newEventsCmd() *cobra.Command {
	var (
		filter     filterFlags
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show recorded events",
		Long: `Show events from the ledger, oldest first.

Filters combine with AND. --limit keeps the most recent N matches.`,
		Example: `  # Last 20 events
  fsledger events --limit 20

  # Deletions since yesterday as JSON
  fsledger events --type deleted --since 2024-05-01 --json

  # Critical changes only
  fsledger events --priority critical`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEvents(cmd, filter, limit, jsonOutput)
		},
	}

	filter.register(cmd)
	cmd.Flags().IntVarP(&limit, "limit", "n", service.DefaultEventsLimit, "Most recent N events (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runEvents(cmd *cobra.Command, filter filterFlags, limit int, jsonOutput bool) error {
	a, err := openReadApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	res, err := a.svc.GetEvents(service.EventsRequest{
		Since:     filter.since,
		Until:     filter.until,
		EventType: filter.eventType,
		WatcherID: filter.watcherID,
		Category:  filter.category,
		Priority:  filter.priority,
		Limit:     &limit,
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), res)
	}

	out := output.New(cmd.OutOrStdout())
	out.Events(res.Events)
	if res.Count > 0 {
		out.Newline()
		out.Statusf("", "%d of %d stored events", res.Count, res.TotalStored)
	}
	return nil
}

// openReadApp loads the config and opens the ledger read-only.
func openReadApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return openApp(cfg, modeRead, nil)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
