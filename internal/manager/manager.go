// Package manager keeps the registry of running file watchers.
//
// A Manager owns every FileWatcher in the process. It canonicalizes roots,
// rejects duplicate roots, applies live updates and restarts watchers whose
// backend failed, within a bounded restart budget.
package manager

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	fserrors "github.com/Aman-CERP/fsledger/internal/errors"
	"github.com/Aman-CERP/fsledger/internal/hash"
	"github.com/Aman-CERP/fsledger/internal/watcher"
)

// Status is the lifecycle state of a watcher.
type Status string

const (
	StatusStarting Status = "starting"
	StatusActive   Status = "active"
	StatusStopped  Status = "stopped"
	StatusError    Status = "error"
)

// PendingConfig holds settings that take effect on the next restart.
type PendingConfig struct {
	Recursive     *bool           `json:"recursive,omitempty"`
	CalculateHash *bool           `json:"calculateHash,omitempty"`
	HashAlgorithm *hash.Algorithm `json:"hashAlgorithm,omitempty"`
}

func (p *PendingConfig) empty() bool {
	return p == nil || (p.Recursive == nil && p.CalculateHash == nil && p.HashAlgorithm == nil)
}

func (p *PendingConfig) applyTo(cfg *watcher.Config) {
	if p == nil {
		return
	}
	if p.Recursive != nil {
		cfg.Recursive = *p.Recursive
	}
	if p.CalculateHash != nil {
		cfg.CalculateHash = *p.CalculateHash
	}
	if p.HashAlgorithm != nil {
		cfg.HashAlgorithm = *p.HashAlgorithm
	}
}

// Handle is a snapshot of one watcher.
type Handle struct {
	ID            string         `json:"id"`
	Config        watcher.Config `json:"config"`
	Status        Status         `json:"status"`
	StartedAt     time.Time      `json:"startedAt"`
	EventsCount   int64          `json:"eventsCount"`
	LastError     string         `json:"lastError,omitempty"`
	Restarts      int            `json:"restarts"`
	Backend       string         `json:"backend,omitempty"`
	PendingConfig *PendingConfig `json:"pendingConfig,omitempty"`
}

// UpdateRequest lists the fields to change. Nil fields are left alone.
type UpdateRequest struct {
	IgnorePatterns *[]string `json:"ignorePatterns,omitempty"`
	Recursive      *bool     `json:"recursive,omitempty"`
	CalculateHash  *bool     `json:"calculateHash,omitempty"`
	HashAlgorithm  *string   `json:"hashAlgorithm,omitempty"`
}

// UpdateResult says which fields took effect and which wait for a restart.
type UpdateResult struct {
	Applied        []string `json:"applied"`
	PendingRestart []string `json:"pendingRestart"`
	Message        string   `json:"message"`
}

// Options configures a Manager.
type Options struct {
	// Watcher is passed to every FileWatcher.
	Watcher watcher.Options

	// MaxRestarts bounds automatic restarts after backend failures.
	// Default: 3. Negative disables automatic restarts.
	MaxRestarts int

	// RestartBackoff is the delay before the first automatic restart; it
	// doubles with each further one up to MaxRestartBackoff.
	// Default: 1s
	RestartBackoff time.Duration

	// MaxRestartBackoff caps the restart delay.
	// Default: 30s
	MaxRestartBackoff time.Duration

	// NewBackend overrides backend selection. Tests use it.
	NewBackend func() watcher.Backend

	Logger *slog.Logger
}

// DefaultOptions returns the default manager options.
func DefaultOptions() Options {
	return Options{
		Watcher:           watcher.DefaultOptions(),
		MaxRestarts:       3,
		RestartBackoff:    time.Second,
		MaxRestartBackoff: 30 * time.Second,
	}
}

// Manager is the watcher registry. One Manager is created per process and
// passed to whoever needs it.
type Manager struct {
	appender watcher.Appender
	hasher   watcher.Hasher
	opts     Options
	logger   *slog.Logger

	mu      sync.RWMutex
	entries map[string]*entry
	byPath  map[string]string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Manager that appends to appender and hashes with hasher.
func New(appender watcher.Appender, hasher watcher.Hasher, opts Options) *Manager {
	defaults := DefaultOptions()
	if opts.MaxRestarts == 0 {
		opts.MaxRestarts = defaults.MaxRestarts
	}
	if opts.RestartBackoff <= 0 {
		opts.RestartBackoff = defaults.RestartBackoff
	}
	if opts.MaxRestartBackoff <= 0 {
		opts.MaxRestartBackoff = defaults.MaxRestartBackoff
	}
	opts.Watcher = opts.Watcher.WithDefaults()

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		appender: appender,
		hasher:   hasher,
		opts:     opts,
		logger:   logger,
		entries:  make(map[string]*entry),
		byPath:   make(map[string]string),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start validates cfg, subscribes to the root and registers the watcher.
// Nothing is registered when the subscription fails.
func (m *Manager) Start(ctx context.Context, cfg watcher.Config) (Handle, error) {
	if err := cfg.Validate(); err != nil {
		return Handle{}, err
	}
	root, err := Canonicalize(cfg.Path)
	if err != nil {
		return Handle{}, err
	}
	cfg.Path = root
	algo, _ := hash.ParseAlgorithm(string(cfg.HashAlgorithm))
	cfg.HashAlgorithm = algo

	id := uuid.NewString()
	if err := m.claim(root, id); err != nil {
		return Handle{}, err
	}

	e := m.newEntry(id, cfg)
	e.op.Lock()
	defer e.op.Unlock()

	if err := m.launch(ctx, e); err != nil {
		m.release(root, id)
		return Handle{}, err
	}

	m.mu.Lock()
	m.entries[id] = e
	m.mu.Unlock()

	m.logger.Info("watcher registered",
		slog.String("watcher_id", id),
		slog.String("path", root))
	return e.handle(), nil
}

// Stop stops the watcher. It returns false for an unknown id. Stopping a
// stopped watcher is a no-op that returns true.
func (m *Manager) Stop(id string) bool {
	e := m.lookup(id)
	if e == nil {
		return false
	}

	e.op.Lock()
	defer e.op.Unlock()
	m.stopEntry(e)
	return true
}

func (m *Manager) stopEntry(e *entry) {
	e.mu.Lock()
	if e.status == StatusStopped {
		e.mu.Unlock()
		return
	}
	e.generation++
	fw := e.fw
	e.mu.Unlock()

	if fw != nil {
		if err := fw.Stop(); err != nil {
			m.logger.Warn("watcher stop failed",
				append([]any{slog.String("watcher_id", e.id)}, fserrors.FormatForLog(err)...)...)
		}
	}

	e.mu.Lock()
	e.retire()
	e.status = StatusStopped
	e.mu.Unlock()

	m.release(e.cfg.Path, e.id)
	m.logger.Info("watcher stopped", slog.String("watcher_id", e.id))
}

// List returns every watcher, including stopped ones, ordered by start time.
func (m *Manager) List() []Handle {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	handles := make([]Handle, 0, len(entries))
	for _, e := range entries {
		handles = append(handles, e.handle())
	}
	sort.SliceStable(handles, func(i, j int) bool {
		if handles[i].StartedAt.Equal(handles[j].StartedAt) {
			return handles[i].ID < handles[j].ID
		}
		return handles[i].StartedAt.Before(handles[j].StartedAt)
	})
	return handles
}

// Get returns one watcher.
func (m *Manager) Get(id string) (Handle, error) {
	e := m.lookup(id)
	if e == nil {
		return Handle{}, fserrors.NotFoundError(id)
	}
	return e.handle(), nil
}

// Update applies ignore patterns at once and stores the other settings until
// the next restart. The root path cannot be changed.
func (m *Manager) Update(id string, req UpdateRequest) (UpdateResult, error) {
	e := m.lookup(id)
	if e == nil {
		return UpdateResult{}, fserrors.NotFoundError(id)
	}

	// Validate everything before changing anything.
	var algo hash.Algorithm
	if req.HashAlgorithm != nil {
		a, err := hash.ParseAlgorithm(*req.HashAlgorithm)
		if err != nil {
			return UpdateResult{}, err
		}
		algo = a
	}
	if req.IgnorePatterns != nil {
		if _, err := watcher.NewMatcher(*req.IgnorePatterns); err != nil {
			return UpdateResult{}, err
		}
	}

	e.op.Lock()
	defer e.op.Unlock()

	res := UpdateResult{Applied: []string{}, PendingRestart: []string{}}

	e.mu.Lock()
	defer e.mu.Unlock()

	if req.IgnorePatterns != nil {
		patterns := append([]string{}, (*req.IgnorePatterns)...)
		if e.fw != nil && e.status == StatusActive {
			if err := e.fw.SetIgnorePatterns(patterns); err != nil {
				return UpdateResult{}, err
			}
		}
		e.cfg.IgnorePatterns = patterns
		res.Applied = append(res.Applied, "ignorePatterns")
	}

	if e.pending == nil {
		e.pending = &PendingConfig{}
	}
	if req.Recursive != nil {
		v := *req.Recursive
		e.pending.Recursive = &v
		res.PendingRestart = append(res.PendingRestart, "recursive")
	}
	if req.CalculateHash != nil {
		v := *req.CalculateHash
		e.pending.CalculateHash = &v
		res.PendingRestart = append(res.PendingRestart, "calculateHash")
	}
	if req.HashAlgorithm != nil {
		e.pending.HashAlgorithm = &algo
		res.PendingRestart = append(res.PendingRestart, "hashAlgorithm")
	}
	if e.pending.empty() {
		e.pending = nil
	}

	switch {
	case len(res.Applied) == 0 && len(res.PendingRestart) == 0:
		res.Message = "nothing to update"
	case len(res.PendingRestart) > 0:
		res.Message = "ignore patterns are applied immediately; restart the watcher to apply the remaining changes"
		if len(res.Applied) == 0 {
			res.Message = "restart the watcher to apply the changes"
		}
	default:
		res.Message = "changes applied"
	}

	m.logger.Info("watcher updated",
		slog.String("watcher_id", id),
		slog.Any("applied", res.Applied),
		slog.Any("pending_restart", res.PendingRestart))
	return res, nil
}

// Restart stops the watcher, applies pending settings and starts it again
// under the same ID. It also resets the automatic restart budget.
func (m *Manager) Restart(ctx context.Context, id string) (Handle, error) {
	e := m.lookup(id)
	if e == nil {
		return Handle{}, fserrors.NotFoundError(id)
	}

	e.op.Lock()
	defer e.op.Unlock()

	e.mu.Lock()
	wasStopped := e.status == StatusStopped
	e.generation++
	fw := e.fw
	e.mu.Unlock()

	if fw != nil {
		_ = fw.Stop()
	}
	if wasStopped {
		if err := m.claim(e.cfg.Path, id); err != nil {
			return Handle{}, err
		}
	}

	e.mu.Lock()
	e.retire()
	e.pending.applyTo(&e.cfg)
	e.pending = nil
	e.restarts = 0
	e.mu.Unlock()
	e.breaker.Reset()

	if err := m.launch(ctx, e); err != nil {
		return Handle{}, err
	}
	m.logger.Info("watcher restarted", slog.String("watcher_id", id))
	return e.handle(), nil
}

// Shutdown stops every watcher concurrently and waits for supervisors.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cancel()

	m.mu.RLock()
	entries := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, e := range entries {
		g.Go(func() error {
			done := make(chan struct{})
			go func() {
				e.op.Lock()
				m.stopEntry(e)
				e.op.Unlock()
				close(done)
			}()
			select {
			case <-done:
				return nil
			case <-gctx.Done():
				return fserrors.InternalError("shutdown timed out", gctx.Err()).WithDetail("watcher_id", e.id)
			}
		})
	}
	err := g.Wait()

	waited := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
		if err == nil {
			err = fserrors.InternalError("shutdown timed out", ctx.Err())
		}
	}
	return err
}

// Canonicalize returns the absolute, symlink-free form of a directory path.
func Canonicalize(path string) (string, error) {
	if path == "" {
		return "", fserrors.ValidationError("path is required", nil)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fserrors.InvalidPathError(path, "cannot be made absolute", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fserrors.InvalidPathError(path, "does not exist", err)
		}
		return "", fserrors.InvalidPathError(path, "cannot be accessed", err)
	}
	if !info.IsDir() {
		return "", fserrors.InvalidPathError(path, "is not a directory", nil)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fserrors.InvalidPathError(path, "cannot resolve symlinks", err)
	}
	return resolved, nil
}

func (m *Manager) lookup(id string) *entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entries[id]
}

// claim reserves root for id, failing when another live watcher holds it.
func (m *Manager) claim(root, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if owner, ok := m.byPath[root]; ok && owner != id {
		return fserrors.DuplicateWatcherError(root, owner)
	}
	m.byPath[root] = id
	return nil
}

func (m *Manager) release(root, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byPath[root] == id {
		delete(m.byPath, root)
	}
}
