// Package ledger persists normalized filesystem events as an append-only
// newline-delimited JSON log.
//
// One process owns the writer, guarded by a lock file next to the ledger.
// Appends are serialized by a mutex and fsynced before they return. Readers
// work on a snapshot taken at call time: they read at most the committed size,
// so a partially written line is never observed.
//
// Lines are in append order, which is not strictly timestamp order: a
// deletion is only recorded once the rename correlation window has passed,
// stamped with the time the file disappeared, so it can follow events that
// happened later. Query and Export sort by timestamp; tools reading the file
// directly must do the same.
//
// Every event carries a category and priority derived from its path. Append
// fills them when the caller has not, and lines written without them are
// classified when read.
package ledger

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	fserrors "github.com/Aman-CERP/fsledger/internal/errors"
)

// Options configures a Ledger.
type Options struct {
	Logger *slog.Logger
	// OnAppend is called after an event is durable, outside the writer lock.
	OnAppend func(Event)
}

// Ledger is the event log.
type Ledger struct {
	path     string
	readOnly bool
	logger   *slog.Logger
	onAppend func(Event)

	// writeMu serializes Append, ClearBefore and Close.
	writeMu sync.Mutex

	// stateMu guards file and size. Readers hold it only to capture a snapshot.
	stateMu sync.RWMutex
	file    *os.File
	size    int64
	closed  bool

	lock *writerLock
}

// Open opens or creates the ledger at path for writing. It fails with
// ErrCodeLedgerLocked when another process holds the writer lock, and trims a
// torn trailing line left by a crash.
func Open(path string, opts Options) (*Ledger, error) {
	l, err := newLedger(path, opts)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return nil, fserrors.StorageError("failed to create ledger directory", err).WithDetail("path", l.path)
	}

	l.lock = newWriterLock(l.path)
	acquired, err := l.lock.TryLock()
	if err != nil {
		return nil, fserrors.StorageError("failed to lock ledger", err).WithDetail("path", l.path)
	}
	if !acquired {
		return nil, fserrors.New(fserrors.ErrCodeLedgerLocked,
			fmt.Sprintf("ledger %s is in use by another process", l.path), nil).
			WithDetail("lock", l.lock.Path()).
			WithSuggestion("Stop the other fsledger process, or use read-only commands")
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		_ = l.lock.Unlock()
		return nil, fserrors.StorageError("failed to open ledger", err).WithDetail("path", l.path)
	}

	size, err := l.recoverTail(f)
	if err != nil {
		_ = f.Close()
		_ = l.lock.Unlock()
		return nil, err
	}

	l.file = f
	l.size = size
	l.logger.Debug("ledger opened", slog.String("path", l.path), slog.Int64("size", size))
	return l, nil
}

// OpenReadOnly opens the ledger for queries without taking the writer lock.
// A missing file reads as empty. Writes fail.
func OpenReadOnly(path string, opts Options) (*Ledger, error) {
	l, err := newLedger(path, opts)
	if err != nil {
		return nil, err
	}
	l.readOnly = true
	return l, nil
}

func newLedger(path string, opts Options) (*Ledger, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fserrors.ValidationError("ledger path is empty", nil)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fserrors.InvalidPathError(path, "cannot resolve", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{path: abs, logger: logger, onAppend: opts.OnAppend}, nil
}

// recoverTail truncates f after its last newline.
func (l *Ledger) recoverTail(f *os.File) (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, fserrors.StorageError("failed to stat ledger", err)
	}
	size := info.Size()
	if size == 0 {
		return 0, nil
	}

	buf := make([]byte, 4096)
	end := size
	valid := int64(0)
	for end > 0 {
		start := end - int64(len(buf))
		if start < 0 {
			start = 0
		}
		chunk := buf[:end-start]
		if _, err := f.ReadAt(chunk, start); err != nil && !errors.Is(err, io.EOF) {
			return 0, fserrors.StorageError("failed to read ledger tail", err)
		}
		if i := bytes.LastIndexByte(chunk, '\n'); i >= 0 {
			valid = start + int64(i) + 1
			break
		}
		end = start
	}

	if valid != size {
		l.logger.Warn("truncating torn ledger tail",
			slog.String("path", l.path),
			slog.Int64("size", size),
			slog.Int64("valid", valid))
		if err := f.Truncate(valid); err != nil {
			return 0, fserrors.New(fserrors.ErrCodeLedgerCorrupt, "failed to truncate torn ledger tail", err)
		}
	}
	return valid, nil
}

// Path returns the absolute ledger path.
func (l *Ledger) Path() string {
	return l.path
}

// ReadOnly reports whether the ledger was opened without the writer lock.
func (l *Ledger) ReadOnly() bool {
	return l.readOnly
}

// Append assigns event_id and timestamp when absent, then writes e as one
// line and syncs it before returning.
func (l *Ledger) Append(ctx context.Context, e *Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if l.readOnly {
		return fserrors.StorageError("ledger is open read-only", nil)
	}
	if e.FilePath == "" {
		return fserrors.ValidationError("event has no file_path", nil)
	}
	if t, err := ParseEventType(string(e.EventType)); err != nil || t == "" {
		return fserrors.ValidationError(fmt.Sprintf("event has invalid event_type %q", e.EventType), err)
	}

	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	e.Timestamp = e.Timestamp.UTC()
	if e.Category == "" {
		e.Annotate()
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fserrors.InternalError("failed to encode event", err)
	}
	data = append(data, '\n')

	if err := l.write(data); err != nil {
		return err
	}

	if l.onAppend != nil {
		l.onAppend(*e)
	}
	return nil
}

func (l *Ledger) write(data []byte) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	l.stateMu.RLock()
	f, committed, closed := l.file, l.size, l.closed
	l.stateMu.RUnlock()
	if closed {
		return fserrors.StorageError("ledger is closed", nil)
	}

	n, err := f.Write(data)
	if err == nil {
		err = f.Sync()
	}
	if err != nil {
		if n > 0 {
			if terr := f.Truncate(committed); terr != nil {
				l.logger.Error("failed to roll back partial append",
					slog.String("path", l.path), slog.String("error", terr.Error()))
			}
		}
		return fserrors.StorageError("failed to append event", err).WithDetail("path", l.path)
	}

	l.stateMu.Lock()
	l.size = committed + int64(n)
	l.stateMu.Unlock()
	return nil
}

// Close releases the append handle and the writer lock.
func (l *Ledger) Close() error {
	if l.readOnly {
		return nil
	}
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	l.stateMu.Lock()
	defer l.stateMu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true

	var errs []error
	if err := l.file.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := l.lock.Unlock(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fserrors.StorageError("failed to close ledger", err)
	}
	return nil
}

// snapshot returns a reader over the committed content at call time.
func (l *Ledger) snapshot() (io.ReadCloser, error) {
	if l.readOnly {
		f, err := os.Open(l.path)
		if errors.Is(err, os.ErrNotExist) {
			return io.NopCloser(bytes.NewReader(nil)), nil
		}
		if err != nil {
			return nil, fserrors.StorageError("failed to open ledger", err).WithDetail("path", l.path)
		}
		return f, nil
	}

	l.stateMu.RLock()
	defer l.stateMu.RUnlock()
	if l.closed {
		return nil, fserrors.StorageError("ledger is closed", nil)
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fserrors.StorageError("failed to open ledger", err).WithDetail("path", l.path)
	}
	return struct {
		io.Reader
		io.Closer
	}{io.LimitReader(f, l.size), f}, nil
}

// scanLines calls fn for each complete line of the snapshot. A trailing
// fragment without a newline is an in-flight write and is skipped.
func scanLines(r io.Reader, fn func(line []byte) error) error {
	br := bufio.NewReaderSize(r, 64*1024)
	for {
		line, err := br.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fserrors.StorageError("failed to read ledger", err)
		}
		line = bytes.TrimRight(line, "\r\n")
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
}

// scan decodes every event of the snapshot. Undecodable lines are logged and
// skipped.
func (l *Ledger) scan(fn func(e *Event, raw []byte) error) error {
	rc, err := l.snapshot()
	if err != nil {
		return err
	}
	defer rc.Close()

	lineNo := 0
	return scanLines(rc, func(line []byte) error {
		lineNo++
		var e Event
		if err := decodeEvent(line, &e); err != nil {
			l.logger.Warn("skipping corrupt ledger line",
				slog.String("path", l.path),
				slog.Int("line", lineNo),
				slog.String("error", err.Error()))
			return nil
		}
		return fn(&e, line)
	})
}

// decodeEvent parses one line. Lines written before classification existed
// are annotated on read.
func decodeEvent(line []byte, e *Event) error {
	if err := json.Unmarshal(line, e); err != nil {
		return err
	}
	if e.Category == "" {
		e.Annotate()
	}
	return nil
}
