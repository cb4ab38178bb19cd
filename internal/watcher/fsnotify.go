package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	fserrors "github.com/Aman-CERP/fsledger/internal/errors"
)

// errBackendInit marks a failure to create the OS notification instance, as
// opposed to a failure to watch a particular path.
var errBackendInit = errors.New("notification backend unavailable")

// BackendOptions configures a Backend.
type BackendOptions struct {
	// BufferSize is the notification channel capacity.
	BufferSize int

	// PollInterval is used by the polling backend.
	PollInterval time.Duration

	// SkipDir reports whether a directory (absolute path) should not be
	// descended into. Nil descends everywhere.
	SkipDir func(path string) bool

	Logger *slog.Logger
}

func (o BackendOptions) withDefaults() BackendOptions {
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultOptions().EventBufferSize
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultOptions().PollInterval
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// FsnotifyBackend reports changes using fsnotify. In recursive mode every
// directory under the root is watched, and directories created later are
// added as they appear.
type FsnotifyBackend struct {
	opts      BackendOptions
	fsw       *fsnotify.Watcher
	root      string
	recursive bool

	notifications chan Notification
	errors        chan error
	stopCh        chan struct{}
	done          chan struct{}

	// dirs is owned by the loop goroutine after Start.
	dirs map[string]struct{}

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewFsnotifyBackend creates an fsnotify backend.
func NewFsnotifyBackend(opts BackendOptions) *FsnotifyBackend {
	opts = opts.withDefaults()
	return &FsnotifyBackend{
		opts:          opts,
		notifications: make(chan Notification, opts.BufferSize),
		errors:        make(chan error, 10),
		stopCh:        make(chan struct{}),
		done:          make(chan struct{}),
		dirs:          make(map[string]struct{}),
	}
}

// Name returns "fsnotify".
func (b *FsnotifyBackend) Name() string {
	return BackendFsnotify
}

// Start adds the watches and begins delivering notifications.
func (b *FsnotifyBackend) Start(ctx context.Context, root string, recursive bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return fserrors.InternalError("backend already started", nil)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fserrors.OSWatchError("failed to create fsnotify watcher", fmt.Errorf("%w: %w", errBackendInit, err))
	}

	b.fsw = fsw
	b.root = root
	b.recursive = recursive

	if err := b.addTree(root); err != nil {
		_ = fsw.Close()
		return err
	}

	b.started = true
	go b.loop(ctx)
	return nil
}

// addTree watches dir and, in recursive mode, every directory below it.
func (b *FsnotifyBackend) addTree(dir string) error {
	if !b.recursive {
		return b.add(dir)
	}

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return fserrors.OSWatchError(fmt.Sprintf("cannot read %s", path), err).WithDetail("path", path)
			}
			return nil // Skip directories we can't access
		}
		if !d.IsDir() {
			return nil
		}
		if path != b.root && b.opts.SkipDir != nil && b.opts.SkipDir(path) {
			return filepath.SkipDir
		}
		return b.add(path)
	})
}

func (b *FsnotifyBackend) add(path string) error {
	if err := b.fsw.Add(path); err != nil {
		return fserrors.OSWatchError(fmt.Sprintf("failed to watch %s", path), err).WithDetail("path", path)
	}
	b.dirs[path] = struct{}{}
	return nil
}

func (b *FsnotifyBackend) loop(ctx context.Context) {
	defer close(b.done)
	defer close(b.errors)
	defer close(b.notifications)

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stopCh:
			return
		case event, ok := <-b.fsw.Events:
			if !ok {
				return
			}
			if !b.handle(event) {
				return
			}
		case err, ok := <-b.fsw.Errors:
			if !ok {
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				b.emitError(fserrors.BackendError("event queue overflowed; some changes were missed", err))
				continue
			}
			b.emitError(fserrors.BackendError("fsnotify error", err))
		}
	}
}

// handle converts one fsnotify event. It returns false when the
// subscription can no longer continue.
func (b *FsnotifyBackend) handle(event fsnotify.Event) bool {
	path := event.Name
	now := time.Now()

	switch {
	case event.Op&fsnotify.Create != 0:
		isDir := false
		if info, err := os.Lstat(path); err == nil {
			isDir = info.IsDir()
		}
		if isDir {
			b.dirs[path] = struct{}{}
			if b.recursive && (b.opts.SkipDir == nil || !b.opts.SkipDir(path)) {
				if err := b.addTree(path); err != nil {
					if fserrors.GetCode(err) == fserrors.ErrCodeWatchLimit {
						b.emitError(err)
						return false
					}
					b.emitError(fserrors.BackendError("failed to watch new directory", err).WithDetail("path", path))
				}
			}
		}
		return b.emit(Notification{Path: path, Kind: Appeared, IsDir: isDir, Time: now})

	case event.Op&fsnotify.Write != 0:
		_, isDir := b.dirs[path]
		return b.emit(Notification{Path: path, Kind: Changed, IsDir: isDir, Time: now})

	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		if path == b.root {
			b.emitError(fserrors.OSWatchError("watch root was removed or renamed", nil).WithDetail("path", path))
			return false
		}
		_, isDir := b.dirs[path]
		if isDir {
			b.forgetTree(path, event.Op&fsnotify.Rename != 0)
		}
		return b.emit(Notification{Path: path, Kind: Disappeared, IsDir: isDir, Time: now})

	default:
		// Chmod carries no content change
		return true
	}
}

// forgetTree drops dir and its descendants from the known directories. A
// renamed directory keeps its kernel watch under the new name, so it is
// removed explicitly.
func (b *FsnotifyBackend) forgetTree(dir string, renamed bool) {
	prefix := dir + string(filepath.Separator)
	for d := range b.dirs {
		if d == dir || strings.HasPrefix(d, prefix) {
			delete(b.dirs, d)
			if renamed {
				_ = b.fsw.Remove(d)
			}
		}
	}
}

func (b *FsnotifyBackend) emit(n Notification) bool {
	select {
	case b.notifications <- n:
		return true
	case <-b.stopCh:
		return false
	}
}

func (b *FsnotifyBackend) emitError(err error) {
	select {
	case b.errors <- err:
	default:
		b.opts.Logger.Warn("backend error dropped", slog.String("error", err.Error()))
	}
}

// Notifications returns the notification channel.
func (b *FsnotifyBackend) Notifications() <-chan Notification {
	return b.notifications
}

// Errors returns the channel of errors.
func (b *FsnotifyBackend) Errors() <-chan error {
	return b.errors
}

// WatchedDirs returns the number of directories currently watched.
func (b *FsnotifyBackend) WatchedDirs() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fsw == nil {
		return 0
	}
	return len(b.fsw.WatchList())
}

// Stop stops the watcher and releases resources.
func (b *FsnotifyBackend) Stop() error {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return nil
	}
	b.stopped = true
	started := b.started
	close(b.stopCh)
	b.mu.Unlock()

	if !started {
		close(b.notifications)
		close(b.errors)
		return nil
	}

	<-b.done
	return b.fsw.Close()
}
