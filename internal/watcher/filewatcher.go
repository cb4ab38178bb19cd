package watcher

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	fserrors "github.com/Aman-CERP/fsledger/internal/errors"
	"github.com/Aman-CERP/fsledger/internal/hash"
	"github.com/Aman-CERP/fsledger/internal/ledger"
)

// Appender persists events. *ledger.Ledger satisfies it.
type Appender interface {
	Append(ctx context.Context, e *ledger.Event) error
}

// Hasher fingerprints files on a best-effort basis. *hash.Engine satisfies it.
type Hasher interface {
	Fingerprint(ctx context.Context, path string, algo hash.Algorithm) *string
}

// Deps are the collaborators of a FileWatcher.
type Deps struct {
	Appender Appender
	Hasher   Hasher

	// Backend overrides the one selected by Options.Backend. Tests use it.
	Backend Backend

	Logger *slog.Logger
}

// Stats are per-watcher counters.
type Stats struct {
	Notifications  uint64 `json:"notifications"`
	Ignored        uint64 `json:"ignored"`
	Coalesced      uint64 `json:"coalesced"`
	Renames        uint64 `json:"renames"`
	AppendFailures uint64 `json:"appendFailures"`
	BackendErrors  uint64 `json:"backendErrors"`
}

// FileWatcher watches one root and appends normalized events.
type FileWatcher struct {
	id     string
	cfg    Config
	opts   Options
	deps   Deps
	logger *slog.Logger

	backend   Backend
	defaults  *Matcher
	ignore    atomic.Pointer[Matcher]
	excluded  map[string]struct{}
	coalescer *Coalescer
	deletions *deletionCache
	sizes     map[string]int64

	eventsCount    atomic.Int64
	notifications  atomic.Uint64
	ignored        atomic.Uint64
	coalesced      atomic.Uint64
	renames        atomic.Uint64
	appendFailures atomic.Uint64
	backendErrors  atomic.Uint64

	mu        sync.Mutex
	lastError string
	failure   error

	cancel   context.CancelFunc
	done     chan struct{}
	started  atomic.Bool
	stopOnce sync.Once
}

// New creates a FileWatcher for cfg. cfg.Path must already be absolute and
// canonical; the manager takes care of that.
func New(id string, cfg Config, deps Deps, opts Options) (*FileWatcher, error) {
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Appender == nil {
		return nil, fserrors.InternalError("watcher needs an appender", nil)
	}
	if cfg.CalculateHash && deps.Hasher == nil {
		return nil, fserrors.InternalError("hashing enabled without a hasher", nil)
	}
	algo, _ := hash.ParseAlgorithm(string(cfg.HashAlgorithm))
	cfg.HashAlgorithm = algo

	defaults, err := NewMatcher(opts.DefaultIgnore)
	if err != nil {
		return nil, err
	}
	own, err := NewMatcher(cfg.IgnorePatterns)
	if err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	w := &FileWatcher{
		id:        id,
		cfg:       cfg,
		opts:      opts,
		deps:      deps,
		logger:    logger.With(slog.String("watcher_id", id), slog.String("root", cfg.Path)),
		defaults:  defaults,
		excluded:  make(map[string]struct{}),
		coalescer: NewCoalescer(opts.CoalesceWindow),
		deletions: newDeletionCache(opts.CorrelationWindow),
		sizes:     make(map[string]int64),
		done:      make(chan struct{}),
	}
	w.ignore.Store(merge(defaults, own))
	for _, p := range opts.ExcludePaths {
		w.excluded[filepath.Clean(p)] = struct{}{}
	}
	return w, nil
}

// ID returns the watcher ID.
func (w *FileWatcher) ID() string {
	return w.id
}

// Config returns the configuration the watcher runs with, including the
// current ignore patterns.
func (w *FileWatcher) Config() Config {
	cfg := w.cfg
	cfg.IgnorePatterns = w.IgnorePatterns()
	return cfg
}

// Start subscribes synchronously and starts processing in the background.
func (w *FileWatcher) Start(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return fserrors.InternalError("watcher already started", nil)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w.cancel = cancel

	backend := w.deps.Backend
	bopts := BackendOptions{
		BufferSize:   w.opts.EventBufferSize,
		PollInterval: w.opts.PollInterval,
		SkipDir:      w.skipDir,
		Logger:       w.logger,
	}
	if backend == nil {
		b, err := startBackend(runCtx, w.opts.Backend, w.cfg.Path, w.cfg.Recursive, bopts)
		if err != nil {
			cancel()
			close(w.done)
			return err
		}
		backend = b
	} else if err := backend.Start(runCtx, w.cfg.Path, w.cfg.Recursive); err != nil {
		cancel()
		close(w.done)
		return err
	}
	w.backend = backend

	w.logger.Info("watcher started",
		slog.String("backend", backend.Name()),
		slog.Bool("recursive", w.cfg.Recursive),
		slog.Bool("hash", w.cfg.CalculateHash))

	go w.run(runCtx)
	return nil
}

// Stop cancels the subscription, writes pending events and waits up to the
// stop grace period. Safe to call multiple times.
func (w *FileWatcher) Stop() error {
	if !w.started.Load() {
		return nil
	}
	var err error
	w.stopOnce.Do(func() {
		w.cancel()
		if w.backend != nil {
			err = w.backend.Stop()
		}
	})

	timer := time.NewTimer(w.opts.StopGrace + time.Second)
	defer timer.Stop()
	select {
	case <-w.done:
	case <-timer.C:
		w.logger.Warn("watcher did not finish within the stop grace period")
	}
	return err
}

// Done is closed when the watcher has stopped processing.
func (w *FileWatcher) Done() <-chan struct{} {
	return w.done
}

// Err returns the failure that ended the watcher, or nil if it was stopped.
func (w *FileWatcher) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.failure
}

// LastError returns the message of the most recent failure, including
// non-fatal ones.
func (w *FileWatcher) LastError() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastError
}

// EventsCount returns how many events were appended.
func (w *FileWatcher) EventsCount() int64 {
	return w.eventsCount.Load()
}

// BackendName returns the backend in use, or "" before Start.
func (w *FileWatcher) BackendName() string {
	if w.backend == nil {
		return ""
	}
	return w.backend.Name()
}

// Stats returns a snapshot of the watcher counters.
func (w *FileWatcher) Stats() Stats {
	return Stats{
		Notifications:  w.notifications.Load(),
		Ignored:        w.ignored.Load(),
		Coalesced:      w.coalesced.Load(),
		Renames:        w.renames.Load(),
		AppendFailures: w.appendFailures.Load(),
		BackendErrors:  w.backendErrors.Load(),
	}
}

// IgnorePatterns returns the watcher's own patterns, without the defaults.
func (w *FileWatcher) IgnorePatterns() []string {
	all := w.ignore.Load().Patterns()
	return all[len(w.defaults.patterns):]
}

// SetIgnorePatterns replaces the watcher's own patterns while it runs.
func (w *FileWatcher) SetIgnorePatterns(patterns []string) error {
	own, err := NewMatcher(patterns)
	if err != nil {
		return err
	}
	w.ignore.Store(merge(w.defaults, own))
	w.logger.Info("ignore patterns updated", slog.Any("patterns", own.Patterns()))
	return nil
}

func (w *FileWatcher) recordError(err error, fatal bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastError = err.Error()
	if fatal && w.failure == nil {
		w.failure = err
	}
}

// isIgnored reports whether an absolute path is filtered out.
func (w *FileWatcher) isIgnored(path string) bool {
	if _, ok := w.excluded[path]; ok {
		return true
	}
	rel, err := filepath.Rel(w.cfg.Path, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return true
	}
	return w.ignore.Load().Match(rel)
}

func (w *FileWatcher) skipDir(path string) bool {
	return w.isIgnored(path)
}

func (w *FileWatcher) run(ctx context.Context) {
	defer close(w.done)

	sweepEvery := w.opts.CorrelationWindow / 4
	if sweepEvery < 10*time.Millisecond {
		sweepEvery = 10 * time.Millisecond
	}
	sweep := time.NewTicker(sweepEvery)
	defer sweep.Stop()

	flush := time.NewTimer(time.Hour)
	flush.Stop()
	defer flush.Stop()

	notifications := w.backend.Notifications()
	backendErrs := w.backend.Errors()

	for {
		select {
		case <-ctx.Done():
			w.drain(ctx)
			return

		case n, ok := <-notifications:
			if !ok {
				// The backend ended on its own; find out why.
				if backendErrs != nil {
					for err := range backendErrs {
						w.handleBackendError(err)
					}
				}
				if w.Err() == nil && ctx.Err() == nil {
					w.recordError(fserrors.BackendError("notification backend stopped unexpectedly", nil), true)
				}
				w.drain(ctx)
				return
			}
			w.handle(ctx, n)

		case err, ok := <-backendErrs:
			if !ok {
				backendErrs = nil
				continue
			}
			if w.handleBackendError(err) {
				_ = w.backend.Stop()
				w.drain(ctx)
				return
			}

		case now := <-flush.C:
			w.classifyAll(ctx, w.coalescer.Due(now))

		case now := <-sweep.C:
			w.expire(ctx, now)
		}

		if next, ok := w.coalescer.NextDeadline(); ok {
			flush.Reset(time.Until(next))
		} else {
			flush.Stop()
		}
	}
}

// handleBackendError records err and reports whether it is fatal.
func (w *FileWatcher) handleBackendError(err error) bool {
	w.backendErrors.Add(1)
	fatal := IsFatal(err)
	w.recordError(err, fatal)
	attrs := fserrors.FormatForLog(err)
	if fatal {
		w.logger.Error("watch failed", attrs...)
	} else {
		w.logger.Warn("watch backend error", attrs...)
	}
	return fatal
}

func (w *FileWatcher) handle(ctx context.Context, n Notification) {
	w.notifications.Add(1)
	w.expire(ctx, n.Time)

	if w.isIgnored(n.Path) {
		w.ignored.Add(1)
		return
	}
	if n.Kind == Changed && n.IsDir {
		return
	}

	before := w.coalescer.Folded()
	ready := w.coalescer.Add(n)
	if w.coalescer.Folded() != before {
		w.coalesced.Add(1)
	}
	w.classifyAll(ctx, ready)
}

func (w *FileWatcher) classifyAll(ctx context.Context, ns []Notification) {
	for _, n := range ns {
		w.classify(ctx, n)
	}
}

// classify turns one coalesced notification into at most one event.
// Disappearances only enter the deletion cache here; expire emits them.
func (w *FileWatcher) classify(ctx context.Context, n Notification) {
	switch n.Kind {
	case Appeared:
		e := w.describe(ctx, n)
		if d := w.deletions.take(n.Path, n.Time, n.IsDir); d != nil {
			e.OldSize = d.size
			if d.path == n.Path {
				// Same name replaced inside the window.
				e.EventType = ledger.Modified
			} else {
				e.EventType = ledger.Renamed
				e.OldPath = d.path
				w.renames.Add(1)
			}
		} else {
			e.EventType = ledger.Created
		}
		w.emit(ctx, e)

	case Changed:
		if info, err := os.Lstat(n.Path); err == nil && info.IsDir() {
			return
		}
		e := w.describe(ctx, n)
		e.EventType = ledger.Modified
		if size, ok := w.sizes[n.Path]; ok {
			e.OldSize = ledger.Int64(size)
		}
		w.emit(ctx, e)

	case Disappeared:
		var size *int64
		if s, ok := w.sizes[n.Path]; ok {
			size = ledger.Int64(s)
		}
		w.forgetSizes(n.Path, n.IsDir)
		w.deletions.add(n.Path, n.Time, n.IsDir, size)
	}
}

// describe builds the common part of an event for a path that exists.
func (w *FileWatcher) describe(ctx context.Context, n Notification) ledger.Event {
	e := ledger.Event{
		WatcherID:   w.id,
		Timestamp:   n.Time,
		FilePath:    n.Path,
		IsDirectory: n.IsDir,
	}
	if n.IsDir {
		return e
	}

	info, err := os.Stat(n.Path)
	if err != nil {
		delete(w.sizes, n.Path)
		return e
	}
	e.NewSize = ledger.Int64(info.Size())
	w.sizes[n.Path] = info.Size()

	if w.cfg.CalculateHash {
		e.HashAfter = w.deps.Hasher.Fingerprint(ctx, n.Path, w.cfg.HashAlgorithm)
	}
	return e
}

func (w *FileWatcher) forgetSizes(path string, isDir bool) {
	delete(w.sizes, path)
	if !isDir {
		return
	}
	prefix := path + string(filepath.Separator)
	for p := range w.sizes {
		if strings.HasPrefix(p, prefix) {
			delete(w.sizes, p)
		}
	}
}

// expire emits deleted events for pending deletions that can no longer be
// matched. Emission waits one coalesce window past expiry, because an
// appearance inside the correlation window may still be held by the coalescer.
func (w *FileWatcher) expire(ctx context.Context, now time.Time) {
	for _, d := range w.deletions.expired(now.Add(-w.opts.CoalesceWindow)) {
		w.emitDeleted(ctx, d)
	}
}

func (w *FileWatcher) emitDeleted(ctx context.Context, d *pendingDeletion) {
	w.emit(ctx, ledger.Event{
		WatcherID:   w.id,
		Timestamp:   d.deletedAt,
		EventType:   ledger.Deleted,
		FilePath:    d.path,
		IsDirectory: d.isDir,
		OldSize:     d.size,
	})
}

// drain writes everything still pending: coalesced notifications first, so
// they can still pair with pending deletions, then the deletions. It gives
// up once the stop grace period is over.
func (w *FileWatcher) drain(ctx context.Context) {
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.opts.StopGrace)
	defer cancel()

	if w.backend != nil {
		for n := range w.backend.Notifications() {
			if drainCtx.Err() != nil {
				break
			}
			w.handle(drainCtx, n)
		}
	}

	w.classifyAll(drainCtx, w.coalescer.Flush())
	for _, d := range w.deletions.drain() {
		w.emitDeleted(drainCtx, d)
	}

	if drainCtx.Err() != nil {
		w.logger.Warn("stop grace period elapsed, pending events abandoned")
	}
	w.logger.Info("watcher stopped", slog.Int64("events", w.eventsCount.Load()))
}

// emit appends e with bounded retry. A failure is logged with the event
// payload and recorded; the watcher keeps running.
func (w *FileWatcher) emit(ctx context.Context, e ledger.Event) {
	e.Annotate()
	if ctx.Err() != nil && !errors.Is(ctx.Err(), context.Canceled) {
		w.abandon(e, ctx.Err())
		return
	}
	appendCtx := context.WithoutCancel(ctx)
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		appendCtx, cancel = context.WithDeadline(appendCtx, deadline)
		defer cancel()
	}

	retry := w.opts.Retry
	if retry.ShouldRetry == nil {
		retry.ShouldRetry = fserrors.IsRetryable
	}
	err := fserrors.Retry(appendCtx, retry, func() error {
		return w.deps.Appender.Append(appendCtx, &e)
	})
	if err != nil {
		w.abandon(e, err)
		return
	}
	w.eventsCount.Add(1)
}

func (w *FileWatcher) abandon(e ledger.Event, err error) {
	w.appendFailures.Add(1)
	w.recordError(err, false)
	attrs := append([]any{
		slog.String("event_type", string(e.EventType)),
		slog.String("file_path", e.FilePath),
		slog.Time("timestamp", e.Timestamp),
	}, fserrors.FormatForLog(err)...)
	w.logger.Warn("event not persisted", attrs...)
}
