package watcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/fsledger/internal/hash"
	"github.com/Aman-CERP/fsledger/internal/ledger"
)

// fakeBackend is a channel-fed Backend.
type fakeBackend struct {
	ch       chan Notification
	errs     chan error
	startErr error
	once     sync.Once
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		ch:   make(chan Notification, 100),
		errs: make(chan error, 10),
	}
}

func (f *fakeBackend) Start(context.Context, string, bool) error { return f.startErr }
func (f *fakeBackend) Notifications() <-chan Notification       { return f.ch }
func (f *fakeBackend) Errors() <-chan error                     { return f.errs }
func (f *fakeBackend) Name() string                             { return "fake" }

func (f *fakeBackend) Stop() error {
	f.once.Do(func() {
		close(f.ch)
		close(f.errs)
	})
	return nil
}

func (f *fakeBackend) send(path string, kind Kind, isDir bool) {
	f.ch <- Notification{Path: path, Kind: kind, IsDir: isDir, Time: time.Now()}
}

// memAppender records events in memory. The first failFirst calls fail.
type memAppender struct {
	mu        sync.Mutex
	events    []ledger.Event
	failFirst int
	failWith  error
	calls     int
}

func (m *memAppender) Append(_ context.Context, e *ledger.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failWith != nil && (m.failFirst < 0 || m.calls <= m.failFirst) {
		return m.failWith
	}
	m.events = append(m.events, *e)
	return nil
}

func (m *memAppender) snapshot() []ledger.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ledger.Event, len(m.events))
	copy(out, m.events)
	return out
}

func (m *memAppender) waitFor(t *testing.T, n int) []ledger.Event {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(m.snapshot()) >= n
	}, 3*time.Second, 5*time.Millisecond, "expected %d events", n)
	return m.snapshot()
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.CorrelationWindow = 100 * time.Millisecond
	opts.CoalesceWindow = 20 * time.Millisecond
	opts.PollInterval = 50 * time.Millisecond
	opts.StopGrace = time.Second
	opts.DefaultIgnore = []string{".git"}
	opts.Retry.InitialDelay = time.Millisecond
	return opts
}

func startFake(t *testing.T, root string, cfg Config) (*FileWatcher, *fakeBackend, *memAppender) {
	t.Helper()
	fb := newFakeBackend()
	app := &memAppender{}
	cfg.Path = root
	fw, err := New("w-test", cfg, Deps{
		Appender: app,
		Hasher:   hash.NewEngine(hash.DefaultOptions()),
		Backend:  fb,
	}, testOptions())
	require.NoError(t, err)
	require.NoError(t, fw.Start(context.Background()))
	t.Cleanup(func() { _ = fw.Stop() })
	return fw, fb, app
}
