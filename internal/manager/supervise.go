package manager

import (
	"log/slog"
	"time"

	fserrors "github.com/Aman-CERP/fsledger/internal/errors"
	"github.com/Aman-CERP/fsledger/internal/watcher"
)

// supervise waits for fw to end. A watcher that ended on a failure moves to
// error and is restarted while the entry's restart budget allows it.
// gen identifies the run; any explicit Stop or Restart bumps the entry's
// generation and makes this supervisor stand down.
func (m *Manager) supervise(e *entry, fw *watcher.FileWatcher, gen uint64) {
	defer m.wg.Done()

	select {
	case <-fw.Done():
	case <-m.ctx.Done():
		return
	}

	err := fw.Err()
	if err == nil {
		return
	}

	e.mu.Lock()
	if e.generation != gen {
		e.mu.Unlock()
		return
	}
	e.retire()
	e.status = StatusError
	e.lastError = err.Error()
	e.mu.Unlock()

	m.logger.Error("watcher failed",
		append([]any{slog.String("watcher_id", e.id)}, fserrors.FormatForLog(err)...)...)

	m.recover(e, gen)
}

// recover restarts a failed watcher with exponential backoff until it runs
// again, the budget is exhausted or the run is superseded.
func (m *Manager) recover(e *entry, gen uint64) {
	delay := m.opts.RestartBackoff
	for {
		e.breaker.RecordFailure()
		if !e.breaker.Allow() {
			m.logger.Warn("restart budget exhausted, watcher stays in error until restarted",
				slog.String("watcher_id", e.id),
				slog.Int("failures", e.breaker.Failures()))
			return
		}

		timer := time.NewTimer(delay)
		select {
		case <-m.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		e.op.Lock()
		e.mu.Lock()
		stale := e.generation != gen
		e.mu.Unlock()
		if stale {
			e.op.Unlock()
			return
		}

		err := m.launch(m.ctx, e)
		if err == nil {
			e.mu.Lock()
			e.restarts++
			restarts := e.restarts
			e.mu.Unlock()
			e.op.Unlock()
			m.logger.Info("watcher restarted after failure",
				slog.String("watcher_id", e.id),
				slog.Int("restarts", restarts))
			return
		}
		e.op.Unlock()

		m.logger.Warn("watcher restart failed",
			append([]any{slog.String("watcher_id", e.id)}, fserrors.FormatForLog(err)...)...)

		delay *= 2
		if delay > m.opts.MaxRestartBackoff {
			delay = m.opts.MaxRestartBackoff
		}
	}
}
