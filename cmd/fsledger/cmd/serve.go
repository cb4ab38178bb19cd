package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fsledger/internal/config"
	"github.com/Aman-CERP/fsledger/internal/logging"
	"github.com/Aman-CERP/fsledger/internal/mcp"
	"github.com/Aman-CERP/fsledger/internal/preflight"
)

// shutdownTimeout bounds how long serve waits for watchers to flush.
const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var transport string
	var logLevel string
	var skipCheck bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the MCP server on stdio.

Watchers listed under 'watchers:' in the config start automatically. AI
assistants then manage watchers and query the ledger through MCP tools.

stdout carries JSON-RPC only. Logs go to <data_dir>/logs/fsledger.log.`,
		Example: `  # Claude Desktop / Claude Code MCP entry
  fsledger serve

  # Verbose logs
  fsledger serve --log-level debug`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if transport != "" {
				cfg.Server.Transport = transport
			}
			if logLevel != "" {
				cfg.Server.LogLevel = logLevel
			}
			if debugMode {
				cfg.Server.LogLevel = "debug"
			}
			return runServe(cmd.Context(), cfg, skipCheck)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "", "Transport (default from config: stdio)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.Flags().BoolVar(&skipCheck, "skip-check", false, "Skip the first-run system check")

	return cmd
}

// runServe serves MCP until the client disconnects or a signal arrives.
// Nothing may be written to stdout before or outside the MCP session.
func runServe(ctx context.Context, cfg *config.Config, skipCheck bool) error {
	cleanup, err := logging.SetupMCPMode(cfg.Server.LogLevel, logFilePath(cfg))
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer cleanup()

	if !skipCheck {
		if err := firstRunCheck(ctx, cfg); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, srv, err := buildServer(ctx, cfg)
	if err != nil {
		slog.Error("Failed to start server", slog.String("error", err.Error()))
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.Close(shutdownCtx); err != nil {
			slog.Warn("Shutdown incomplete", slog.String("error", err.Error()))
		}
	}()

	return srv.Serve(ctx, cfg.Server.Transport)
}

// firstRunCheck runs the system checks once per data directory. Results go to
// the log; stdout belongs to the MCP client.
func firstRunCheck(ctx context.Context, cfg *config.Config) error {
	target := preflightTarget(cfg)
	if !preflight.NeedsCheck(target.DataDir) {
		return nil
	}

	checker := preflight.New(preflight.WithOutput(io.Discard))
	results := checker.RunAll(ctx, target)
	for _, r := range results {
		if r.Status != preflight.StatusPass {
			slog.Warn("System check",
				slog.String("check", r.Name),
				slog.String("status", r.Status.String()),
				slog.String("message", r.Message))
		}
	}
	if checker.HasCriticalFailures(results) {
		slog.Error("System check failed - run 'fsledger doctor' for diagnostics")
		return errors.New("system check failed")
	}

	if err := preflight.MarkPassed(target.DataDir); err != nil {
		slog.Debug("Failed to mark preflight as passed", slog.String("error", err.Error()))
	}
	return nil
}

// buildServer opens the ledger for writing, starts the configured watchers
// and registers the MCP tools.
func buildServer(ctx context.Context, cfg *config.Config) (*app, *mcp.Server, error) {
	a, err := openApp(cfg, modeWatch, nil)
	if err != nil {
		return nil, nil, err
	}

	started := a.autostart(ctx, cfg.Watchers)
	slog.Info("Configured watchers started",
		slog.Int("started", len(started)),
		slog.Int("configured", len(cfg.Watchers)),
		slog.String("ledger", a.ledger.Path()))

	srv, err := mcp.NewServer(a.svc, slog.Default())
	if err != nil {
		_ = a.Close(ctx)
		return nil, nil, err
	}
	return a, srv, nil
}
