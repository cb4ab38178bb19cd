package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	fserrors "github.com/Aman-CERP/fsledger/internal/errors"
	"github.com/Aman-CERP/fsledger/internal/hash"
	"github.com/Aman-CERP/fsledger/internal/ledger"
)

// EventsRequest is the input of get_events. Timestamps accept RFC3339 or
// YYYY-MM-DD.
type EventsRequest struct {
	Since     string `json:"since,omitempty" jsonschema:"inclusive lower bound (RFC3339 or YYYY-MM-DD)"`
	Until     string `json:"until,omitempty" jsonschema:"exclusive upper bound (RFC3339 or YYYY-MM-DD)"`
	EventType string `json:"event_type,omitempty" jsonschema:"created, modified, deleted or renamed"`
	WatcherID string `json:"watcher_id,omitempty" jsonschema:"only events of this watcher"`
	Category  string `json:"category,omitempty" jsonschema:"code, document, config, data, prompt, model or unknown"`
	Priority  string `json:"priority,omitempty" jsonschema:"low, medium, high or critical"`
	// Limit keeps the most recent N events. Nil selects DefaultEventsLimit and
	// zero means unlimited.
	Limit *int `json:"limit,omitempty" jsonschema:"most recent N events (default 100, 0 for all)"`
}

// EventsResult is the output of get_events.
type EventsResult struct {
	Count       int            `json:"count"`
	TotalStored int            `json:"total_stored"`
	Events      []ledger.Event `json:"events"`
}

// StatsRequest is the input of get_event_stats.
type StatsRequest struct {
	WatcherID string `json:"watcher_id,omitempty" jsonschema:"restrict to one watcher"`
}

// ExportRequest is the input of export_events. Unlike EventsRequest it has
// no limit: every matching event is written.
type ExportRequest struct {
	Format     string `json:"format" jsonschema:"json, jsonl, csv or sqlite"`
	Since      string `json:"since,omitempty" jsonschema:"inclusive lower bound"`
	Until      string `json:"until,omitempty" jsonschema:"exclusive upper bound"`
	EventType  string `json:"event_type,omitempty" jsonschema:"created, modified, deleted or renamed"`
	WatcherID  string `json:"watcher_id,omitempty" jsonschema:"only events of this watcher"`
	Category   string `json:"category,omitempty" jsonschema:"code, document, config, data, prompt, model or unknown"`
	Priority   string `json:"priority,omitempty" jsonschema:"low, medium, high or critical"`
	OutputPath string `json:"output_path,omitempty" jsonschema:"destination file (default under the data directory)"`
}

// ExportResult is the output of export_events.
type ExportResult struct {
	FilePath  string        `json:"file_path"`
	Format    ledger.Format `json:"format"`
	SizeBytes int64         `json:"size_bytes"`
	Count     int           `json:"count"`
}

// ClearRequest is the input of clear_events.
type ClearRequest struct {
	BeforeDate string `json:"before_date" jsonschema:"remove events strictly before this time"`
}

// ClearResult is the output of clear_events.
type ClearResult struct {
	DeletedCount   int `json:"deleted_count"`
	RemainingCount int `json:"remaining_count"`
}

// HashRequest is the input of get_file_hash.
type HashRequest struct {
	FilePath  string `json:"file_path" jsonschema:"file to fingerprint"`
	Algorithm string `json:"algorithm,omitempty" jsonschema:"sha256, sha1, md5, blake3 or xxhash64"`
}

// HashResult is the output of get_file_hash.
type HashResult struct {
	FilePath  string         `json:"file_path"`
	Algorithm hash.Algorithm `json:"algorithm"`
	Hash      string         `json:"hash"`
}

// GetEvents queries the ledger.
func (s *Service) GetEvents(req EventsRequest) (EventsResult, error) {
	if err := s.requireLedger(); err != nil {
		return EventsResult{}, err
	}
	limit := DefaultEventsLimit
	if req.Limit != nil {
		limit = *req.Limit
	}
	filter, err := buildFilter(selection{
		since: req.Since, until: req.Until, eventType: req.EventType,
		watcherID: req.WatcherID, category: req.Category, priority: req.Priority,
	}, limit)
	if err != nil {
		return EventsResult{}, err
	}

	events, err := s.ledger.Query(filter)
	if err != nil {
		return EventsResult{}, err
	}
	total, err := s.ledger.Count()
	if err != nil {
		return EventsResult{}, err
	}
	if events == nil {
		events = []ledger.Event{}
	}
	return EventsResult{Count: len(events), TotalStored: total, Events: events}, nil
}

// GetEventStats aggregates the ledger, optionally for one watcher.
func (s *Service) GetEventStats(req StatsRequest) (ledger.Stats, error) {
	if err := s.requireLedger(); err != nil {
		return ledger.Stats{}, err
	}
	return s.ledger.Stats(strings.TrimSpace(req.WatcherID))
}

// ExportEvents writes the selected events to a file. Without an output path
// the file goes to <exports dir>/events-<unix>.<ext>.
func (s *Service) ExportEvents(req ExportRequest) (ExportResult, error) {
	if err := s.requireLedger(); err != nil {
		return ExportResult{}, err
	}
	format, err := ledger.ParseFormat(req.Format)
	if err != nil {
		return ExportResult{}, err
	}
	filter, err := buildFilter(selection{
		since: req.Since, until: req.Until, eventType: req.EventType,
		watcherID: req.WatcherID, category: req.Category, priority: req.Priority,
	}, 0)
	if err != nil {
		return ExportResult{}, err
	}

	path := req.OutputPath
	if path == "" {
		if s.opts.ExportsDir == "" {
			return ExportResult{}, fserrors.ValidationError("output_path is required", nil)
		}
		path = filepath.Join(s.opts.ExportsDir,
			fmt.Sprintf("events-%d.%s", s.now().Unix(), format.Extension()))
	}
	path, err = filepath.Abs(path)
	if err != nil {
		return ExportResult{}, fserrors.InvalidPathError(req.OutputPath, "cannot resolve", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ExportResult{}, fserrors.StorageError("failed to create export directory", err).
			WithDetail("path", path)
	}

	count, err := s.writeExport(path, format, filter)
	if err != nil {
		return ExportResult{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return ExportResult{}, fserrors.StorageError("failed to stat export file", err)
	}
	s.logger.Info("events exported",
		slog.String("path", path),
		slog.String("format", string(format)),
		slog.Int("count", count))
	return ExportResult{FilePath: path, Format: format, SizeBytes: info.Size(), Count: count}, nil
}

func (s *Service) writeExport(path string, format ledger.Format, filter ledger.Filter) (int, error) {
	if format == ledger.FormatSQLite {
		return s.ledger.ExportSQLite(path, filter)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fserrors.StorageError("failed to create export file", err).
			WithDetail("path", path)
	}
	count, err := s.ledger.Export(f, format, filter)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fserrors.StorageError("failed to write export file", cerr)
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, err
	}
	return count, nil
}

// ClearEvents removes every event before the given time.
func (s *Service) ClearEvents(req ClearRequest) (ClearResult, error) {
	if err := s.requireLedger(); err != nil {
		return ClearResult{}, err
	}
	if strings.TrimSpace(req.BeforeDate) == "" {
		return ClearResult{}, fserrors.ValidationError("before_date is required", nil)
	}
	cutoff, err := ParseTime(req.BeforeDate)
	if err != nil {
		return ClearResult{}, err
	}
	removed, remaining, err := s.ledger.ClearBefore(cutoff)
	if err != nil {
		return ClearResult{}, err
	}
	s.logger.Info("events cleared",
		slog.Time("before", cutoff),
		slog.Int("deleted", removed),
		slog.Int("remaining", remaining))
	return ClearResult{DeletedCount: removed, RemainingCount: remaining}, nil
}

// GetFileHash fingerprints one regular file. Unlike event hashing, failures
// are returned to the caller.
func (s *Service) GetFileHash(ctx context.Context, req HashRequest) (HashResult, error) {
	if strings.TrimSpace(req.FilePath) == "" {
		return HashResult{}, fserrors.ValidationError("file_path is required", nil)
	}
	algo := s.opts.HashAlgorithm
	if req.Algorithm != "" {
		a, err := hash.ParseAlgorithm(req.Algorithm)
		if err != nil {
			return HashResult{}, err
		}
		algo = a
	}

	path, err := filepath.Abs(req.FilePath)
	if err != nil {
		return HashResult{}, fserrors.InvalidPathError(req.FilePath, "cannot resolve", err)
	}
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		return HashResult{}, fserrors.InvalidPathError(path, "does not exist", err)
	case err != nil:
		return HashResult{}, fserrors.InvalidPathError(path, "cannot stat", err)
	case !info.Mode().IsRegular():
		return HashResult{}, fserrors.InvalidPathError(path, "is not a regular file", nil)
	}

	digest, err := s.hasher.Hash(ctx, path, algo)
	if err != nil {
		return HashResult{}, err
	}
	return HashResult{FilePath: path, Algorithm: algo, Hash: digest}, nil
}

// selection holds the raw filter fields shared by get_events and
// export_events.
type selection struct {
	since, until, eventType, watcherID, category, priority string
}

func buildFilter(sel selection, limit int) (ledger.Filter, error) {
	var f ledger.Filter
	var err error
	if f.Since, err = ParseTime(sel.since); err != nil {
		return f, err
	}
	if f.Until, err = ParseTime(sel.until); err != nil {
		return f, err
	}
	if f.EventType, err = ledger.ParseEventType(sel.eventType); err != nil {
		return f, err
	}
	if f.Category, err = ledger.ParseCategory(sel.category); err != nil {
		return f, err
	}
	if f.Priority, err = ledger.ParsePriority(sel.priority); err != nil {
		return f, err
	}
	f.WatcherID = strings.TrimSpace(sel.watcherID)
	f.Limit = limit
	return f, f.Validate()
}

// ParseTime accepts RFC3339 (with or without fractional seconds) and
// YYYY-MM-DD, which means midnight UTC. Empty input yields the zero time.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fserrors.ValidationError(fmt.Sprintf("invalid timestamp %q", s), nil).
		WithSuggestion("Use RFC3339 (2024-05-01T12:00:00Z) or YYYY-MM-DD")
}
