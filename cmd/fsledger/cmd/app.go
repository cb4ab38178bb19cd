package cmd

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/fsledger/internal/config"
	fserrors "github.com/Aman-CERP/fsledger/internal/errors"
	"github.com/Aman-CERP/fsledger/internal/hash"
	"github.com/Aman-CERP/fsledger/internal/ledger"
	"github.com/Aman-CERP/fsledger/internal/manager"
	"github.com/Aman-CERP/fsledger/internal/service"
	"github.com/Aman-CERP/fsledger/internal/watcher"
)

// loadConfig loads the configuration named by --config.
func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// lenientConfig is loadConfig falling back to defaults. Logging uses it so a
// broken config file is still reported through the normal error path.
func lenientConfig() *config.Config {
	cfg, err := loadConfig()
	if err != nil {
		return config.NewConfig()
	}
	return cfg
}

// logFilePath is the log file under the data directory.
func logFilePath(cfg *config.Config) string {
	return filepath.Join(config.ExpandHome(cfg.DataDir), "logs", "fsledger.log")
}

// appMode selects what openApp sets up.
type appMode int

const (
	// modeRead opens the ledger without the writer lock.
	modeRead appMode = iota
	// modeWrite takes the writer lock.
	modeWrite
	// modeWatch takes the writer lock and starts a watcher manager.
	modeWatch
)

// app holds the components one command works with.
type app struct {
	cfg     *config.Config
	ledger  *ledger.Ledger
	hasher  *hash.Engine
	manager *manager.Manager
	svc     *service.Service
	logger  *slog.Logger
}

// openApp builds the ledger, hasher, manager and service from cfg.
// onAppend, when set, sees every event after it is written.
func openApp(cfg *config.Config, mode appMode, onAppend func(ledger.Event)) (*app, error) {
	logger := slog.Default()
	lopts := ledger.Options{Logger: logger, OnAppend: onAppend}

	var (
		l   *ledger.Ledger
		err error
	)
	if mode == modeRead {
		l, err = ledger.OpenReadOnly(cfg.LedgerPath(), lopts)
	} else {
		l, err = ledger.Open(cfg.LedgerPath(), lopts)
	}
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		ledger: l,
		hasher: hash.NewEngine(hashOptions(cfg, logger)),
		logger: logger,
	}
	if mode == modeWatch {
		a.manager = manager.New(l, a.hasher, managerOptions(cfg, l.Path(), logger))
	}
	a.svc = service.New(a.manager, l, a.hasher, service.Options{
		ExportsDir:    cfg.ExportsDir(),
		HashAlgorithm: defaultAlgorithm(cfg),
		Logger:        logger,
	})
	return a, nil
}

// Close stops every watcher and then closes the ledger.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.manager != nil {
		if err := a.manager.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.ledger.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// autostart starts the configured watchers. A watcher that fails to start is
// logged and skipped.
func (a *app) autostart(ctx context.Context, watchers []config.WatcherConfig) []service.WatcherView {
	var started []service.WatcherView
	for _, w := range watchers {
		recursive := w.IsRecursive()
		view, err := a.svc.StartWatching(ctx, service.StartRequest{
			Path:           config.ExpandHome(w.Path),
			Recursive:      &recursive,
			IgnorePatterns: w.IgnorePatterns,
			CalculateHash:  w.CalculateHash,
			HashAlgorithm:  w.HashAlgorithm,
		})
		if err != nil {
			a.logger.Warn("configured watcher not started",
				append([]any{slog.String("path", w.Path)}, fserrors.FormatForLog(err)...)...)
			continue
		}
		started = append(started, view)
	}
	return started
}

// defaultAlgorithm is hash.algorithm, which Validate accepts in any case.
func defaultAlgorithm(cfg *config.Config) hash.Algorithm {
	return hash.Algorithm(strings.ToLower(cfg.Hash.Algorithm))
}

func hashOptions(cfg *config.Config, logger *slog.Logger) hash.Options {
	return hash.Options{
		MaxBytes:  cfg.Hash.MaxBytes,
		Timeout:   config.Duration(cfg.Hash.Timeout),
		CacheSize: cfg.Hash.CacheSize,
		Logger:    logger,
	}
}

// watcherOptions maps the watch section onto watcher options. The ledger and
// its lock file are excluded so a watcher over the data directory does not
// record its own writes.
func watcherOptions(cfg *config.Config, ledgerPath string) watcher.Options {
	retry := fserrors.DefaultRetryConfig()
	retry.MaxRetries = cfg.Ledger.AppendRetries
	if d := config.Duration(cfg.Ledger.RetryDelay); d > 0 {
		retry.InitialDelay = d
	}

	return watcher.Options{
		Backend:           strings.ToLower(cfg.Watch.Backend),
		CorrelationWindow: config.Duration(cfg.Watch.CorrelationWindow),
		CoalesceWindow:    config.Duration(cfg.Watch.CoalesceWindow),
		PollInterval:      config.Duration(cfg.Watch.PollInterval),
		EventBufferSize:   cfg.Watch.EventBuffer,
		StopGrace:         config.Duration(cfg.Watch.StopGrace),
		DefaultIgnore:     cfg.Watch.DefaultIgnore,
		ExcludePaths:      excludedPaths(ledgerPath),
		Retry:             retry,
	}
}

// excludedPaths lists the ledger files under both their given and their
// resolved names, since watch roots are resolved through symlinks.
func excludedPaths(ledgerPath string) []string {
	paths := []string{ledgerPath, ledgerPath + ".lock"}
	if dir, err := filepath.EvalSymlinks(filepath.Dir(ledgerPath)); err == nil {
		resolved := filepath.Join(dir, filepath.Base(ledgerPath))
		if resolved != ledgerPath {
			paths = append(paths, resolved, resolved+".lock")
		}
	}
	return paths
}

// managerOptions maps watch.max_restarts: -1 and 0 both mean no automatic
// restarts, which the manager expresses as a negative budget.
func managerOptions(cfg *config.Config, ledgerPath string, logger *slog.Logger) manager.Options {
	opts := manager.DefaultOptions()
	opts.Watcher = watcherOptions(cfg, ledgerPath)
	opts.MaxRestarts = cfg.Watch.MaxRestarts
	if opts.MaxRestarts == 0 {
		opts.MaxRestarts = -1
	}
	opts.Logger = logger
	return opts
}
