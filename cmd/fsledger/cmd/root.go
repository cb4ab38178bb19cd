// Package cmd provides the CLI commands for fsledger.
package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	fserrors "github.com/Aman-CERP/fsledger/internal/errors"
	"github.com/Aman-CERP/fsledger/internal/logging"
	"github.com/Aman-CERP/fsledger/internal/profiling"
	"github.com/Aman-CERP/fsledger/pkg/version"
)

// Global flags
var (
	configPath     string
	debugMode      bool
	loggingCleanup func()
)

// Profiling flags
var (
	profileCfg profiling.Config
	profiler   *profiling.Session
)

// NewRootCmd creates the root command for the fsledger CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fsledger",
		Short: "Record filesystem changes in an append-only ledger",
		Long: `fsledger watches directories and records every change as a created,
modified, deleted or renamed event in an append-only NDJSON ledger.

Run 'fsledger serve' to expose watchers and the ledger to AI assistants
over MCP, or 'fsledger watch <dir>' to record changes from a terminal.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("fsledger version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (merged over ~/.config/fsledger/config.yaml)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to <data_dir>/logs/")

	cmd.PersistentFlags().StringVar(&profileCfg.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileCfg.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileCfg.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newEventsCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newClearCmd())
	cmd.AddCommand(newHashCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startProfilingAndLogging starts the requested profiles and installs the CLI
// logger. serve sets up its own file-only logging because stdout and stderr
// belong to the MCP client.
func startProfilingAndLogging(cmd *cobra.Command, _ []string) error {
	if profileCfg.Enabled() {
		s, err := profiling.Start(profileCfg)
		if err != nil {
			return err
		}
		profiler = s
	}

	if cmd.Name() == "serve" {
		return nil
	}

	cfg := logging.Config{Level: "warn", WriteToStderr: true}
	if debugMode {
		cfg.Level = "debug"
		cfg.FilePath = logFilePath(lenientConfig())
	}

	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	if debugMode {
		slog.Debug("Debug logging enabled",
			slog.String("log_file", cfg.FilePath),
			slog.String("version", version.Version))
	}
	return nil
}

// stopProfilingAndLogging writes the profiles and closes the log file.
func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	var err error
	if profiler != nil {
		err = profiler.Stop()
		profiler = nil
	}
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return err
}

// Execute runs the root command.
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		printError(os.Stderr, err)
	}
	return err
}

// printError renders domain errors with their code and hint.
func printError(w io.Writer, err error) {
	var fe *fserrors.FsError
	if errors.As(err, &fe) {
		_, _ = fmt.Fprint(w, fserrors.FormatForCLI(err))
		return
	}
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
}
