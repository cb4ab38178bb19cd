package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fsledger/internal/config"
	"github.com/Aman-CERP/fsledger/internal/service"
	"github.com/Aman-CERP/fsledger/internal/ui"
)

type watchOptions struct {
	noRecursive bool
	ignore      []string
	hash        bool
	algorithm   string
	backend     string
	duration    time.Duration
	plain       bool
	noColor     bool
}

func newWatchCmd() *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch <dir>...",
		Short: "Watch directories in the foreground",
		Long: `Watch one or more directories and print each change as it is recorded.

Events are appended to the same ledger 'fsledger serve' uses, so the ledger
cannot be shared with a running server. On a terminal a live dashboard is
shown; press q or Ctrl+C to stop.`,
		Example: `  # Watch the current directory
  fsledger watch .

  # Fingerprint changed files and skip build output
  fsledger watch ~/src/app --hash --ignore 'dist' --ignore '*.log'

  # Record for one minute
  fsledger watch /var/log/app --no-recursive --for 1m`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if opts.backend != "" {
				cfg.Watch.Backend = opts.backend
			}
			return runWatch(cmd, cfg, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.noRecursive, "no-recursive", false, "Watch only the top level of each directory")
	cmd.Flags().StringArrayVarP(&opts.ignore, "ignore", "i", nil, "Ignore pattern (repeatable)")
	cmd.Flags().BoolVar(&opts.hash, "hash", false, "Record content fingerprints")
	cmd.Flags().StringVar(&opts.algorithm, "algorithm", "", "Fingerprint algorithm: sha256, sha1, md5, blake3, xxhash64")
	cmd.Flags().StringVar(&opts.backend, "backend", "", "Backend: auto, fsnotify, polling")
	cmd.Flags().DurationVar(&opts.duration, "for", 0, "Stop after this long (0 runs until interrupted)")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "Print one line per event instead of the dashboard")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colors")

	return cmd
}

func runWatch(cmd *cobra.Command, cfg *config.Config, dirs []string, opts watchOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(opts.plain),
		ui.WithNoColor(opts.noColor),
		ui.WithLedgerPath(cfg.LedgerPath()),
	))

	a, err := openApp(cfg, modeWatch, renderer.Event)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = a.Close(shutdownCtx)
	}()

	recursive := !opts.noRecursive
	for _, dir := range dirs {
		if _, err := a.svc.StartWatching(ctx, service.StartRequest{
			Path:           config.ExpandHome(dir),
			Recursive:      &recursive,
			IgnorePatterns: opts.ignore,
			CalculateHash:  opts.hash,
			HashAlgorithm:  opts.algorithm,
		}); err != nil {
			return err
		}
	}

	list, err := a.svc.ListWatchers()
	if err != nil {
		return err
	}
	if err := renderer.Start(ctx, list.Watchers); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-renderer.Done():
	}
	return renderer.Stop()
}
