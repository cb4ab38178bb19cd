package ledger

import (
	"fmt"
	"strings"
	"time"

	fserrors "github.com/Aman-CERP/fsledger/internal/errors"
)

// EventType is the normalized classification of a filesystem change.
type EventType string

const (
	Created  EventType = "created"
	Modified EventType = "modified"
	Deleted  EventType = "deleted"
	Renamed  EventType = "renamed"
)

// EventTypes lists every event type in display order.
func EventTypes() []EventType {
	return []EventType{Created, Modified, Deleted, Renamed}
}

// ParseEventType validates s. An empty string means "any".
func ParseEventType(s string) (EventType, error) {
	t := EventType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case "", Created, Modified, Deleted, Renamed:
		return t, nil
	}
	return "", fserrors.ValidationError(fmt.Sprintf("unknown event type %q", s), nil).
		WithSuggestion("Use one of: created, modified, deleted, renamed")
}

// Event is one immutable ledger record. Nullable fields are pointers so that
// "unknown" and zero stay distinct in JSON.
type Event struct {
	EventID     string    `json:"event_id"`
	WatcherID   string    `json:"watcher_id"`
	Timestamp   time.Time `json:"timestamp"`
	EventType   EventType `json:"event_type"`
	FilePath    string    `json:"file_path"`
	OldPath     string    `json:"old_path,omitempty"`
	IsDirectory bool      `json:"is_directory"`
	OldSize     *int64    `json:"old_size"`
	NewSize     *int64    `json:"new_size"`
	HashBefore  *string   `json:"hash_before"`
	HashAfter   *string   `json:"hash_after"`
	Category    Category  `json:"category,omitempty"`
	Priority    Priority  `json:"priority,omitempty"`
}

// Filter selects events. Zero fields match everything.
type Filter struct {
	// Since is inclusive.
	Since time.Time
	// Until is exclusive.
	Until     time.Time
	EventType EventType
	WatcherID string
	Category  Category
	Priority  Priority
	// Limit keeps the most recent N matches. Zero means unlimited.
	Limit int
}

// Match reports whether e satisfies every set predicate.
func (f Filter) Match(e *Event) bool {
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !e.Timestamp.Before(f.Until) {
		return false
	}
	if f.EventType != "" && e.EventType != f.EventType {
		return false
	}
	if f.WatcherID != "" && e.WatcherID != f.WatcherID {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.Priority != "" && e.Priority != f.Priority {
		return false
	}
	return true
}

// Validate rejects inconsistent filters.
func (f Filter) Validate() error {
	if f.Limit < 0 {
		return fserrors.ValidationError("limit must not be negative", nil)
	}
	if !f.Since.IsZero() && !f.Until.IsZero() && f.Until.Before(f.Since) {
		return fserrors.ValidationError("until is before since", nil)
	}
	return nil
}

// DateRange is the first and last event timestamps. Both are nil for an
// empty selection.
type DateRange struct {
	First *time.Time `json:"first"`
	Last  *time.Time `json:"last"`
}

// Stats aggregates the ledger, optionally for one watcher.
type Stats struct {
	WatcherID         string            `json:"watcher_id,omitempty"`
	TotalEvents       int               `json:"total_events"`
	CountsByType      map[EventType]int `json:"counts_by_type"`
	CountsByCategory  map[Category]int  `json:"counts_by_category"`
	CountsByPriority  map[Priority]int  `json:"counts_by_priority"`
	DateRange         DateRange         `json:"date_range"`
	TotalBytesChanged int64             `json:"total_bytes_changed"`
}

// Int64 returns a pointer to v, for building nullable size fields.
func Int64(v int64) *int64 {
	return &v
}
