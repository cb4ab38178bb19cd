package ui

import (
	"context"
	"sync"

	"github.com/Aman-CERP/fsledger/internal/ledger"
	"github.com/Aman-CERP/fsledger/internal/output"
	"github.com/Aman-CERP/fsledger/internal/service"
)

// PlainRenderer prints one line per event. Used for pipes, CI and tests.
type PlainRenderer struct {
	mu      sync.Mutex
	out     *output.Writer
	cfg     Config
	tracker *ActivityTracker
	done    chan struct{}
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	out := output.New(cfg.Output)
	if cfg.NoColor || DetectNoColor() {
		out = output.NewWithColor(cfg.Output, false)
	}
	return &PlainRenderer{
		out:     out,
		cfg:     cfg,
		tracker: NewActivityTracker(cfg.Recent, 0),
		done:    make(chan struct{}),
	}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(_ context.Context, watchers []service.WatcherView) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.out.Watchers(watchers)
	if r.cfg.LedgerPath != "" {
		r.out.Statusf("📒", "Ledger: %s", r.cfg.LedgerPath)
	}
	r.out.Newline()
	return nil
}

// Event implements Renderer.
func (r *PlainRenderer) Event(e ledger.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracker.Record(e)
	r.out.Event(e)
}

// Done implements Renderer. The plain renderer never asks to quit.
func (r *PlainRenderer) Done() <-chan struct{} {
	return r.done
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.tracker.Snapshot()
	r.out.Newline()
	r.out.Statusf("⏹", "Stopping watchers after %s (%d events: %s)",
		formatDuration(snap.Elapsed), snap.Total, summarizeCounts(snap.Counts))
	return nil
}

var _ Renderer = (*PlainRenderer)(nil)
