package cmd

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fsledger/internal/logging"
)

type logsOptions struct {
	lines   int
	level   string
	filter  string
	logFile string
}

func newLogsCmd() *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent log entries",
		Long: `Show the last lines of the fsledger log.

'fsledger serve' always logs to <data_dir>/logs/fsledger.log; other commands
do so with --debug.`,
		Example: `  fsledger logs
  fsledger logs -n 200 --level warn
  fsledger logs --filter watcher_id`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&opts.level, "level", "", "Minimum level (debug|info|warn|error)")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "Only lines matching this pattern (regex)")
	cmd.Flags().StringVar(&opts.logFile, "file", "", "Path to log file")

	return cmd
}

func runLogs(cmd *cobra.Command, opts logsOptions) error {
	explicit := opts.logFile
	if explicit == "" {
		explicit = logFilePath(lenientConfig())
	}
	path, err := logging.FindLogFile(explicit)
	if err != nil {
		return err
	}

	var pattern *regexp.Regexp
	if opts.filter != "" {
		pattern, err = regexp.Compile(opts.filter)
		if err != nil {
			return fmt.Errorf("invalid filter pattern: %w", err)
		}
	}
	minLevel, err := levelRank(opts.level)
	if err != nil {
		return err
	}

	// Filtering happens after the tail, so -n bounds the lines read.
	lines, err := logging.TailLines(path, opts.lines)
	if err != nil {
		return fmt.Errorf("failed to read log file: %w", err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Log file: %s\n---\n", path)
	for _, line := range lines {
		if pattern != nil && !pattern.MatchString(line) {
			continue
		}
		if minLevel > 0 && lineLevel(line) < minLevel {
			continue
		}
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return nil
}

var levelRanks = map[string]int{"debug": 1, "info": 2, "warn": 3, "error": 4}

func levelRank(level string) (int, error) {
	if level == "" {
		return 0, nil
	}
	rank, ok := levelRanks[strings.ToLower(level)]
	if !ok {
		return 0, fmt.Errorf("invalid level %q (use debug, info, warn or error)", level)
	}
	return rank, nil
}

// lineLevel reads the level of a JSON log record. Lines that are not JSON
// records rank highest so they are never hidden.
func lineLevel(line string) int {
	var rec struct {
		Level string `json:"level"`
	}
	if err := json.Unmarshal([]byte(line), &rec); err != nil || rec.Level == "" {
		return len(levelRanks)
	}
	if rank, ok := levelRanks[strings.ToLower(rec.Level)]; ok {
		return rank
	}
	return len(levelRanks)
}
