package ledger

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	fserrors "github.com/Aman-CERP/fsledger/internal/errors"
)

// Format is an export encoding.
type Format string

const (
	FormatJSON   Format = "json"
	FormatJSONL  Format = "jsonl"
	FormatCSV    Format = "csv"
	// FormatSQLite writes a database file; it needs ExportSQLite rather
	// than a stream.
	FormatSQLite Format = "sqlite"
)

// ParseFormat validates s.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatJSONL, FormatCSV, FormatSQLite:
		return f, nil
	}
	return "", fserrors.ValidationError(fmt.Sprintf("unsupported export format %q", s), nil).
		WithSuggestion("Use one of: json, jsonl, csv, sqlite")
}

// Extension returns the file extension for the format, without the dot.
func (f Format) Extension() string {
	if f == FormatSQLite {
		return "db"
	}
	return string(f)
}

var csvHeader = []string{
	"event_id", "watcher_id", "timestamp", "event_type", "file_path", "old_path",
	"is_directory", "old_size", "new_size", "hash_before", "hash_after",
	"category", "priority",
}

// Export writes the events matching filter to w and returns how many were
// written. The ledger is not modified.
func (l *Ledger) Export(w io.Writer, format Format, filter Filter) (int, error) {
	events, err := l.Query(filter)
	if err != nil {
		return 0, err
	}

	switch format {
	case FormatJSON:
		err = writeJSON(w, events)
	case FormatJSONL:
		err = writeJSONL(w, events)
	case FormatCSV:
		err = writeCSV(w, events)
	case FormatSQLite:
		return 0, fserrors.ValidationError("sqlite export needs a file path", nil).
			WithSuggestion("Use ExportSQLite")
	default:
		_, err = ParseFormat(string(format))
		return 0, err
	}
	if err != nil {
		return 0, fserrors.StorageError("failed to write export", err)
	}
	return len(events), nil
}

func writeJSON(w io.Writer, events []Event) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(events)
}

func writeJSONL(w io.Writer, events []Event) error {
	enc := json.NewEncoder(w)
	for i := range events {
		if err := enc.Encode(&events[i]); err != nil {
			return err
		}
	}
	return nil
}

func writeCSV(w io.Writer, events []Event) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, e := range events {
		record := []string{
			e.EventID,
			e.WatcherID,
			e.Timestamp.Format(time.RFC3339Nano),
			string(e.EventType),
			e.FilePath,
			e.OldPath,
			strconv.FormatBool(e.IsDirectory),
			formatSize(e.OldSize),
			formatSize(e.NewSize),
			formatString(e.HashBefore),
			formatString(e.HashAfter),
			string(e.Category),
			string(e.Priority),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatSize(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func formatString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
