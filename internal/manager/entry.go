package manager

import (
	"context"
	"sync"
	"time"

	fserrors "github.com/Aman-CERP/fsledger/internal/errors"
	"github.com/Aman-CERP/fsledger/internal/watcher"
)

// entry is the registry record of one watcher ID.
//
// op serializes Start/Stop/Update/Restart and supervised restarts on the ID.
// mu guards the fields below it and is only held briefly, so snapshots never
// wait for a slow stop.
type entry struct {
	id      string
	op      sync.Mutex
	breaker *fserrors.CircuitBreaker

	mu         sync.Mutex
	cfg        watcher.Config
	pending    *PendingConfig
	status     Status
	startedAt  time.Time
	fw         *watcher.FileWatcher
	baseEvents int64
	lastError  string
	restarts   int
	generation uint64
}

func (m *Manager) newEntry(id string, cfg watcher.Config) *entry {
	maxFailures := m.opts.MaxRestarts + 1
	if m.opts.MaxRestarts < 0 {
		maxFailures = 1
	}
	return &entry{
		id:      id,
		cfg:     cfg,
		status:  StatusStarting,
		breaker: fserrors.NewCircuitBreaker("watcher-"+id, fserrors.WithMaxFailures(maxFailures)),
	}
}

// handle returns a snapshot of the entry.
func (e *entry) handle() Handle {
	e.mu.Lock()
	defer e.mu.Unlock()

	h := Handle{
		ID:          e.id,
		Config:      e.cfg,
		Status:      e.status,
		StartedAt:   e.startedAt,
		EventsCount: e.baseEvents,
		LastError:   e.lastError,
		Restarts:    e.restarts,
	}
	h.Config.IgnorePatterns = append([]string{}, e.cfg.IgnorePatterns...)
	if e.fw != nil {
		h.EventsCount += e.fw.EventsCount()
		h.Backend = e.fw.BackendName()
	}
	if !e.pending.empty() {
		p := *e.pending
		h.PendingConfig = &p
	}
	return h
}

// retire folds the current FileWatcher's counters into the entry and drops
// it. Callers hold e.mu.
func (e *entry) retire() {
	if e.fw == nil {
		return
	}
	e.baseEvents += e.fw.EventsCount()
	if msg := e.fw.LastError(); msg != "" && e.lastError == "" {
		e.lastError = msg
	}
	e.fw = nil
}

// launch creates and starts a FileWatcher for the entry's current config and
// hands it to a supervisor. Callers hold e.op.
func (m *Manager) launch(ctx context.Context, e *entry) error {
	e.mu.Lock()
	cfg := e.cfg
	cfg.IgnorePatterns = append([]string{}, e.cfg.IgnorePatterns...)
	e.status = StatusStarting
	e.mu.Unlock()

	deps := watcher.Deps{
		Appender: m.appender,
		Hasher:   m.hasher,
		Logger:   m.logger,
	}
	if m.opts.NewBackend != nil {
		deps.Backend = m.opts.NewBackend()
	}

	fw, err := watcher.New(e.id, cfg, deps, m.opts.Watcher)
	if err == nil {
		err = fw.Start(ctx)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.status = StatusError
		e.lastError = err.Error()
		return err
	}
	e.fw = fw
	e.status = StatusActive
	e.startedAt = time.Now().UTC()
	e.lastError = ""

	m.wg.Add(1)
	go m.supervise(e, fw, e.generation)
	return nil
}
