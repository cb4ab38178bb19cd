package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/fsledger/internal/hash"
	"github.com/Aman-CERP/fsledger/internal/ledger"
	"github.com/Aman-CERP/fsledger/internal/manager"
	"github.com/Aman-CERP/fsledger/internal/service"
	"github.com/Aman-CERP/fsledger/internal/watcher"
)

type stack struct {
	svc    *service.Service
	ledger *ledger.Ledger
	dir    string
}

func newStack(t *testing.T, backend string) *stack {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	l, err := ledger.Open(filepath.Join(t.TempDir(), "events.jsonl"), ledger.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	opts := manager.DefaultOptions()
	opts.Watcher.Backend = backend
	opts.Watcher.PollInterval = 50 * time.Millisecond
	opts.Watcher.CoalesceWindow = 20 * time.Millisecond
	opts.Watcher.CorrelationWindow = 200 * time.Millisecond
	engine := hash.NewEngine(hash.DefaultOptions())
	mgr := manager.New(l, engine, opts)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mgr.Shutdown(ctx)
	})

	return &stack{
		svc:    service.New(mgr, l, engine, service.Options{ExportsDir: t.TempDir()}),
		ledger: l,
		dir:    t.TempDir(),
	}
}

// waitFor blocks until an event of type typ for path is stored.
func (s *stack) waitFor(t *testing.T, typ ledger.EventType, path string) ledger.Event {
	t.Helper()
	var found ledger.Event
	require.Eventually(t, func() bool {
		events, err := s.ledger.Query(ledger.Filter{EventType: typ})
		if err != nil {
			return false
		}
		for _, e := range events {
			if e.FilePath == path {
				found = e
				return true
			}
		}
		return false
	}, 5*time.Second, 25*time.Millisecond, "no %s event for %s", typ, path)
	return found
}

func TestWatchLedger_Lifecycle(t *testing.T) {
	for _, backend := range []string{watcher.BackendFsnotify, watcher.BackendPolling} {
		t.Run(backend, func(t *testing.T) {
			// Given: a hashing watcher on an empty directory
			s := newStack(t, backend)
			ctx := context.Background()
			view, err := s.svc.StartWatching(ctx, service.StartRequest{
				Path:           s.dir,
				IgnorePatterns: []string{"*.swp"},
				CalculateHash:  true,
				HashAlgorithm:  "sha256",
			})
			require.NoError(t, err)
			root := view.Path

			// When: a file is created
			file := filepath.Join(root, "notes.txt")
			require.NoError(t, os.WriteFile(file, []byte("hello"), 0o644))

			// Then: a created event carries the size and digest
			created := s.waitFor(t, ledger.Created, file)
			assert.Equal(t, view.ID, created.WatcherID)
			require.NotNil(t, created.NewSize)
			assert.Equal(t, int64(5), *created.NewSize)
			require.NotNil(t, created.HashAfter)
			assert.Equal(t, "sha256:2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", *created.HashAfter)

			// When: the file grows
			require.NoError(t, os.WriteFile(file, []byte("hello world"), 0o644))

			// Then: a modified event records both sizes
			modified := s.waitFor(t, ledger.Modified, file)
			require.NotNil(t, modified.OldSize)
			require.NotNil(t, modified.NewSize)
			assert.Equal(t, int64(5), *modified.OldSize)
			assert.Equal(t, int64(11), *modified.NewSize)

			// When: the file is renamed and then deleted
			moved := filepath.Join(root, "moved.txt")
			require.NoError(t, os.Rename(file, moved))
			renamed := s.waitFor(t, ledger.Renamed, moved)
			require.NoError(t, os.Remove(moved))
			s.waitFor(t, ledger.Deleted, moved)

			// Then: the rename kept the old path and ignored files never show up
			assert.Equal(t, file, renamed.OldPath)
			require.NoError(t, os.WriteFile(filepath.Join(root, ".notes.swp"), []byte("x"), 0o644))
			time.Sleep(300 * time.Millisecond)
			events, err := s.ledger.Query(ledger.Filter{WatcherID: view.ID})
			require.NoError(t, err)
			for _, e := range events {
				assert.NotContains(t, e.FilePath, ".swp")
			}

			got, err := s.svc.GetWatcher(view.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(len(events)), got.EventsCount)
		})
	}
}

func TestWatchLedger_StopEndsRecording(t *testing.T) {
	// Given: a running watcher that has recorded one event
	s := newStack(t, watcher.BackendFsnotify)
	ctx := context.Background()
	view, err := s.svc.StartWatching(ctx, service.StartRequest{Path: s.dir})
	require.NoError(t, err)
	first := filepath.Join(view.Path, "a.txt")
	require.NoError(t, os.WriteFile(first, []byte("a"), 0o644))
	s.waitFor(t, ledger.Created, first)

	// When: the watcher is stopped and another file appears
	res, err := s.svc.StopWatching(view.ID)
	require.NoError(t, err)
	require.True(t, res.Stopped)
	require.NoError(t, os.WriteFile(filepath.Join(view.Path, "b.txt"), []byte("b"), 0o644))
	time.Sleep(300 * time.Millisecond)

	// Then: nothing new is recorded and the watcher stays listed as stopped
	n, err := s.ledger.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	list, err := s.svc.ListWatchers()
	require.NoError(t, err)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, manager.StatusStopped, list.Watchers[0].Status)
}

func TestWatchLedger_RestartResumes(t *testing.T) {
	// Given: a stopped watcher
	s := newStack(t, watcher.BackendPolling)
	ctx := context.Background()
	view, err := s.svc.StartWatching(ctx, service.StartRequest{Path: s.dir})
	require.NoError(t, err)
	_, err = s.svc.StopWatching(view.ID)
	require.NoError(t, err)

	// When: it is restarted and a file is written
	restarted, err := s.svc.RestartWatcher(ctx, view.ID)
	require.NoError(t, err)
	file := filepath.Join(view.Path, "c.txt")
	require.NoError(t, os.WriteFile(file, []byte("c"), 0o644))

	// Then: the same ID records again
	assert.Equal(t, view.ID, restarted.ID)
	assert.Equal(t, manager.StatusActive, restarted.Status)
	e := s.waitFor(t, ledger.Created, file)
	assert.Equal(t, view.ID, e.WatcherID)
}
