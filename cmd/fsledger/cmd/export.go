package cmd

import (
	"context"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fsledger/internal/output"
	"github.com/Aman-CERP/fsledger/internal/service"
)

func newExportCmd() *cobra.Command {
	var (
		filter     filterFlags
		format     string
		outputPath string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export events to a file",
		Long: `Export matching events as json, jsonl, csv or a sqlite database.

Every matching event is written; unlike "events" there is no limit.
Without --output the file is written to <data_dir>/exports/.`,
		Example: `  # Everything as CSV
  fsledger export --format csv

  # One watcher's renames to a chosen file
  fsledger export --format jsonl --type renamed --watcher 3f2a... -o renames.jsonl

  # A database for ad-hoc SQL
  fsledger export --format sqlite -o events.db`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openReadApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(context.Background()) }()

			res, err := a.svc.ExportEvents(service.ExportRequest{
				Format:     format,
				Since:      filter.since,
				Until:      filter.until,
				EventType:  filter.eventType,
				WatcherID:  filter.watcherID,
				Category:   filter.category,
				Priority:   filter.priority,
				OutputPath: outputPath,
			})
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			out.Successf("Exported %s events as %s", humanize.Comma(int64(res.Count)), res.Format)
			out.Statusf("📁", "File: %s (%s)", res.FilePath, humanize.IBytes(uint64(res.SizeBytes)))
			return nil
		},
	}

	filter.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Format: json, jsonl, csv, sqlite")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Destination file")

	return cmd
}
