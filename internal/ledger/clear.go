package ledger

import (
	"io"
	"log/slog"
	"os"
	"time"

	fserrors "github.com/Aman-CERP/fsledger/internal/errors"
)

// ClearBefore removes every event with a timestamp before cutoff and keeps the
// rest byte for byte. It is the only mutation besides Append. Calling it again
// with the same cutoff removes nothing.
func (l *Ledger) ClearBefore(cutoff time.Time) (removed, remaining int, err error) {
	if l.readOnly {
		return 0, 0, fserrors.StorageError("ledger is open read-only", nil)
	}
	if cutoff.IsZero() {
		return 0, 0, fserrors.ValidationError("cutoff is required", nil)
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	// First pass counts, so an idempotent call never rewrites the file.
	err = l.scan(func(e *Event, _ []byte) error {
		if e.Timestamp.Before(cutoff) {
			removed++
		} else {
			remaining++
		}
		return nil
	})
	if err != nil || removed == 0 {
		return 0, remaining, err
	}

	rc, err := l.snapshot()
	if err != nil {
		return 0, 0, err
	}

	l.stateMu.Lock()
	defer l.stateMu.Unlock()

	var written int64
	rerr := replaceFile(l.path, func(w io.Writer) error {
		defer rc.Close()
		return scanLinesDecoded(rc, func(e *Event, raw []byte) error {
			if e.Timestamp.Before(cutoff) {
				return nil
			}
			n, err := w.Write(append(raw, '\n'))
			written += int64(n)
			return err
		})
	}, l.file)

	f, oerr := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if oerr != nil {
		l.closed = true
		return 0, 0, fserrors.StorageError("failed to reopen ledger after rewrite", oerr).WithDetail("path", l.path)
	}
	_ = l.file.Close()
	l.file = f

	if rerr != nil {
		info, serr := f.Stat()
		if serr == nil {
			l.size = info.Size()
		}
		return 0, 0, fserrors.StorageError("failed to rewrite ledger", rerr).WithDetail("path", l.path)
	}
	l.size = written

	l.logger.Info("ledger pruned",
		slog.String("path", l.path),
		slog.Time("cutoff", cutoff),
		slog.Int("removed", removed),
		slog.Int("remaining", remaining))
	return removed, remaining, nil
}

// scanLinesDecoded is scanLines plus JSON decoding; undecodable lines are dropped.
func scanLinesDecoded(r io.Reader, fn func(e *Event, raw []byte) error) error {
	return scanLines(r, func(line []byte) error {
		var e Event
		if err := decodeEvent(line, &e); err != nil {
			return nil
		}
		return fn(&e, line)
	})
}
