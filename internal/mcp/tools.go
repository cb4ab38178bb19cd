package mcp

import (
	"github.com/Aman-CERP/fsledger/internal/manager"
)

// Tool names.
const (
	ToolStartWatching  = "start_watching"
	ToolStopWatching   = "stop_watching"
	ToolListWatchers   = "list_watchers"
	ToolGetWatcher     = "get_watcher"
	ToolUpdateWatcher  = "update_watcher"
	ToolRestartWatcher = "restart_watcher"
	ToolGetEvents      = "get_events"
	ToolGetEventStats  = "get_event_stats"
	ToolExportEvents   = "export_events"
	ToolClearEvents    = "clear_events"
	ToolGetFileHash    = "get_file_hash"
)

// WatcherIDInput identifies one watcher.
type WatcherIDInput struct {
	WatcherID string `json:"watcher_id" jsonschema:"watcher ID returned by start_watching"`
}

// ListWatchersInput defines the input schema for list_watchers (no parameters).
type ListWatchersInput struct{}

// UpdateWatcherInput defines the input schema for update_watcher.
type UpdateWatcherInput struct {
	WatcherID      string    `json:"watcher_id" jsonschema:"watcher ID returned by start_watching"`
	IgnorePatterns *[]string `json:"ignorePatterns,omitempty" jsonschema:"replacement ignore patterns, applied immediately"`
	Recursive      *bool     `json:"recursive,omitempty" jsonschema:"applied on restart"`
	CalculateHash  *bool     `json:"calculateHash,omitempty" jsonschema:"applied on restart"`
	HashAlgorithm  *string   `json:"hashAlgorithm,omitempty" jsonschema:"applied on restart"`
}

func (in UpdateWatcherInput) request() manager.UpdateRequest {
	return manager.UpdateRequest{
		IgnorePatterns: in.IgnorePatterns,
		Recursive:      in.Recursive,
		CalculateHash:  in.CalculateHash,
		HashAlgorithm:  in.HashAlgorithm,
	}
}

// toolDescriptions are shown to MCP clients.
var toolDescriptions = map[string]string{
	ToolStartWatching:  "Start watching a directory. Changes are classified as created, modified, deleted or renamed and appended to the event ledger.",
	ToolStopWatching:   "Stop a watcher. The watcher stays listed with status 'stopped'.",
	ToolListWatchers:   "List every watcher with its status and event count.",
	ToolGetWatcher:     "Get one watcher by ID.",
	ToolUpdateWatcher:  "Update a watcher. Ignore patterns apply immediately; recursive, calculateHash and hashAlgorithm apply on restart_watcher.",
	ToolRestartWatcher: "Restart a watcher under the same ID, applying pending settings and resetting its restart budget.",
	ToolGetEvents:      "Query ledger events. Filters (time range, event_type, watcher_id, category, priority) combine with AND. limit keeps the most recent N events in ascending time order; it defaults to 100, pass 0 for all.",
	ToolGetEventStats:  "Aggregate ledger statistics: counts by type, category and priority, date range and total bytes changed.",
	ToolExportEvents:   "Export ledger events to a file as json, jsonl, csv or a sqlite database. Export has no limit: it writes every matching event, so compare it with get_events called with limit 0.",
	ToolClearEvents:    "Remove every event strictly before before_date.",
	ToolGetFileHash:    "Fingerprint a file (sha256, sha1, md5, blake3 or xxhash64). For change detection, not security.",
}
