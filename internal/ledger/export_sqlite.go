package ledger

import (
	"database/sql"
	"errors"
	"os"
	"time"

	_ "modernc.org/sqlite" // pure Go driver, no CGO

	fserrors "github.com/Aman-CERP/fsledger/internal/errors"
)

var sqliteSchema = []string{
	`CREATE TABLE events (
		event_id     TEXT NOT NULL,
		watcher_id   TEXT NOT NULL,
		timestamp    TEXT NOT NULL,
		event_type   TEXT NOT NULL,
		file_path    TEXT NOT NULL,
		old_path     TEXT,
		is_directory INTEGER NOT NULL,
		old_size     INTEGER,
		new_size     INTEGER,
		hash_before  TEXT,
		hash_after   TEXT,
		category     TEXT NOT NULL,
		priority     TEXT NOT NULL
	)`,
	`CREATE INDEX idx_events_timestamp ON events(timestamp)`,
	`CREATE INDEX idx_events_watcher ON events(watcher_id, timestamp)`,
	`CREATE INDEX idx_events_path ON events(file_path)`,
	`CREATE INDEX idx_events_priority ON events(priority, timestamp)`,
}

const sqliteInsert = `INSERT INTO events (
	event_id, watcher_id, timestamp, event_type, file_path, old_path,
	is_directory, old_size, new_size, hash_before, hash_after,
	category, priority
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// ExportSQLite writes the events matching filter into a new SQLite database
// at path, replacing any existing file. Timestamps are stored as RFC3339 UTC
// text so they sort lexically.
func (l *Ledger) ExportSQLite(path string, filter Filter) (int, error) {
	events, err := l.Query(filter)
	if err != nil {
		return 0, err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fserrors.StorageError("failed to replace export file", err).WithDetail("path", path)
	}

	if err := writeSQLite(path, events); err != nil {
		_ = os.Remove(path)
		return 0, fserrors.StorageError("failed to write sqlite export", err).WithDetail("path", path)
	}
	return len(events), nil
}

func writeSQLite(path string, events []Event) (err error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); err == nil {
			err = cerr
		}
	}()
	// One writer; the export is a single transaction.
	db.SetMaxOpenConns(1)

	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	ins, err := tx.Prepare(sqliteInsert)
	if err != nil {
		return err
	}
	defer ins.Close()

	for _, e := range events {
		if _, err = ins.Exec(
			e.EventID,
			e.WatcherID,
			e.Timestamp.UTC().Format(time.RFC3339Nano),
			string(e.EventType),
			e.FilePath,
			sql.NullString{String: e.OldPath, Valid: e.OldPath != ""},
			e.IsDirectory,
			nullInt(e.OldSize),
			nullInt(e.NewSize),
			nullString(e.HashBefore),
			nullString(e.HashAfter),
			string(e.Category),
			string(e.Priority),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
