package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	fserrors "github.com/Aman-CERP/fsledger/internal/errors"
)

// PollingBackend detects changes by periodically scanning the directory.
// Used when fsnotify is not available or fails.
type PollingBackend struct {
	opts      BackendOptions
	root      string
	recursive bool

	// fileState is owned by the loop goroutine after Start.
	fileState map[string]fileSnapshot

	notifications chan Notification
	errors        chan error
	stopCh        chan struct{}
	done          chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
}

type fileSnapshot struct {
	modTime time.Time
	size    int64
	isDir   bool
}

// NewPollingBackend creates a polling backend.
func NewPollingBackend(opts BackendOptions) *PollingBackend {
	opts = opts.withDefaults()
	return &PollingBackend{
		opts:          opts,
		fileState:     make(map[string]fileSnapshot),
		notifications: make(chan Notification, opts.BufferSize),
		errors:        make(chan error, 10),
		stopCh:        make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Name returns "polling".
func (p *PollingBackend) Name() string {
	return BackendPolling
}

// Start takes the baseline snapshot and begins polling.
func (p *PollingBackend) Start(ctx context.Context, root string, recursive bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return fserrors.InternalError("backend already started", nil)
	}

	p.root = root
	p.recursive = recursive

	state, err := p.scan()
	if err != nil {
		return fserrors.OSWatchError("perform initial scan", err).WithDetail("path", root)
	}
	p.fileState = state

	p.started = true
	go p.loop(ctx)
	return nil
}

func (p *PollingBackend) loop(ctx context.Context) {
	defer close(p.done)
	defer close(p.errors)
	defer close(p.notifications)

	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			if !p.detectChanges() {
				return
			}
		}
	}
}

// scan walks the root and records file state keyed by absolute path.
func (p *PollingBackend) scan() (map[string]fileSnapshot, error) {
	if _, err := os.Stat(p.root); err != nil {
		return nil, err
	}

	state := make(map[string]fileSnapshot)
	err := filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == p.root {
				return err
			}
			return nil // Skip files we can't access
		}
		if path == p.root {
			return nil
		}

		if d.IsDir() && p.opts.SkipDir != nil && p.opts.SkipDir(path) {
			return filepath.SkipDir
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		state[path] = fileSnapshot{
			modTime: info.ModTime(),
			size:    info.Size(),
			isDir:   d.IsDir(),
		}

		if d.IsDir() && !p.recursive {
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// detectChanges compares current state with the previous scan and emits
// notifications: disappearances first so that renames found in one scan
// can be correlated. It returns false when the root is gone.
func (p *PollingBackend) detectChanges() bool {
	current, err := p.scan()
	if err != nil {
		p.emitError(fserrors.OSWatchError("watch root is no longer readable", err).WithDetail("path", p.root))
		return false
	}

	now := time.Now()
	var gone, changed []Notification

	for path, prev := range p.fileState {
		if _, exists := current[path]; !exists {
			gone = append(gone, Notification{Path: path, Kind: Disappeared, IsDir: prev.isDir, Time: now})
		}
	}
	for path, snap := range current {
		prev, exists := p.fileState[path]
		switch {
		case !exists:
			changed = append(changed, Notification{Path: path, Kind: Appeared, IsDir: snap.isDir, Time: now})
		case prev.isDir != snap.isDir:
			gone = append(gone, Notification{Path: path, Kind: Disappeared, IsDir: prev.isDir, Time: now})
			changed = append(changed, Notification{Path: path, Kind: Appeared, IsDir: snap.isDir, Time: now})
		case !snap.isDir && (!prev.modTime.Equal(snap.modTime) || prev.size != snap.size):
			changed = append(changed, Notification{Path: path, Kind: Changed, Time: now})
		}
	}
	p.fileState = current

	sortByPath(gone)
	sortByPath(changed)
	for _, n := range append(gone, changed...) {
		if !p.emit(n) {
			return false
		}
	}
	return true
}

func sortByPath(ns []Notification) {
	sort.Slice(ns, func(i, j int) bool { return ns[i].Path < ns[j].Path })
}

func (p *PollingBackend) emit(n Notification) bool {
	select {
	case p.notifications <- n:
		return true
	case <-p.stopCh:
		return false
	}
}

func (p *PollingBackend) emitError(err error) {
	select {
	case p.errors <- err:
	default:
		p.opts.Logger.Warn("backend error dropped", slog.String("error", err.Error()))
	}
}

// Notifications returns the notification channel.
func (p *PollingBackend) Notifications() <-chan Notification {
	return p.notifications
}

// Errors returns the channel of errors.
func (p *PollingBackend) Errors() <-chan error {
	return p.errors
}

// Stop stops the polling backend.
func (p *PollingBackend) Stop() error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	started := p.started
	close(p.stopCh)
	p.mu.Unlock()

	if !started {
		close(p.notifications)
		close(p.errors)
		return nil
	}
	<-p.done
	return nil
}
