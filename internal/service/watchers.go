package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Aman-CERP/fsledger/internal/hash"
	"github.com/Aman-CERP/fsledger/internal/manager"
	"github.com/Aman-CERP/fsledger/internal/watcher"
)

// StartRequest is the input of start_watching.
type StartRequest struct {
	Path string `json:"path" jsonschema:"directory to watch"`
	// Recursive defaults to true.
	Recursive      *bool    `json:"recursive,omitempty" jsonschema:"watch subdirectories (default true)"`
	IgnorePatterns []string `json:"ignorePatterns,omitempty" jsonschema:"glob patterns relative to the root"`
	CalculateHash  bool     `json:"calculateHash,omitempty" jsonschema:"fingerprint file content"`
	HashAlgorithm  string   `json:"hashAlgorithm,omitempty" jsonschema:"sha256, sha1, md5, blake3 or xxhash64"`
}

// WatcherView is the external shape of a watcher handle.
type WatcherView struct {
	ID             string                 `json:"id"`
	Path           string                 `json:"path"`
	Status         manager.Status         `json:"status"`
	StartedAt      time.Time              `json:"startedAt"`
	Recursive      bool                   `json:"recursive"`
	IgnorePatterns []string               `json:"ignorePatterns"`
	CalculateHash  bool                   `json:"calculateHash"`
	HashAlgorithm  hash.Algorithm         `json:"hashAlgorithm"`
	EventsCount    int64                  `json:"eventsCount"`
	Backend        string                 `json:"backend,omitempty"`
	Restarts       int                    `json:"restarts"`
	LastError      string                 `json:"lastError,omitempty"`
	PendingConfig  *manager.PendingConfig `json:"pendingConfig,omitempty"`
}

func viewOf(h manager.Handle) WatcherView {
	patterns := h.Config.IgnorePatterns
	if patterns == nil {
		patterns = []string{}
	}
	return WatcherView{
		ID:             h.ID,
		Path:           h.Config.Path,
		Status:         h.Status,
		StartedAt:      h.StartedAt,
		Recursive:      h.Config.Recursive,
		IgnorePatterns: patterns,
		CalculateHash:  h.Config.CalculateHash,
		HashAlgorithm:  h.Config.HashAlgorithm,
		EventsCount:    h.EventsCount,
		Backend:        h.Backend,
		Restarts:       h.Restarts,
		LastError:      h.LastError,
		PendingConfig:  h.PendingConfig,
	}
}

// StopResult is the output of stop_watching.
type StopResult struct {
	Stopped bool   `json:"stopped"`
	Message string `json:"message"`
}

// ListResult is the output of list_watchers.
type ListResult struct {
	Count    int           `json:"count"`
	Watchers []WatcherView `json:"watchers"`
}

// StartWatching starts a watcher and returns its handle.
func (s *Service) StartWatching(ctx context.Context, req StartRequest) (WatcherView, error) {
	if err := s.requireManager(); err != nil {
		return WatcherView{}, err
	}

	cfg := watcher.Config{
		Path:           req.Path,
		Recursive:      true,
		IgnorePatterns: req.IgnorePatterns,
		CalculateHash:  req.CalculateHash,
		HashAlgorithm:  hash.Algorithm(req.HashAlgorithm),
	}
	if req.Recursive != nil {
		cfg.Recursive = *req.Recursive
	}
	if cfg.HashAlgorithm == "" {
		cfg.HashAlgorithm = s.opts.HashAlgorithm
	}

	h, err := s.mgr.Start(ctx, cfg)
	if err != nil {
		return WatcherView{}, err
	}
	return viewOf(h), nil
}

// StopWatching stops a watcher. Unknown IDs report Stopped=false.
func (s *Service) StopWatching(id string) (StopResult, error) {
	if err := s.requireManager(); err != nil {
		return StopResult{}, err
	}
	if !s.mgr.Stop(id) {
		return StopResult{Message: fmt.Sprintf("watcher %s not found", id)}, nil
	}
	return StopResult{Stopped: true, Message: fmt.Sprintf("watcher %s stopped", id)}, nil
}

// ListWatchers returns every watcher ordered by start time.
func (s *Service) ListWatchers() (ListResult, error) {
	if err := s.requireManager(); err != nil {
		return ListResult{}, err
	}
	handles := s.mgr.List()
	views := make([]WatcherView, 0, len(handles))
	for _, h := range handles {
		views = append(views, viewOf(h))
	}
	return ListResult{Count: len(views), Watchers: views}, nil
}

// GetWatcher returns one watcher or a NotFoundError.
func (s *Service) GetWatcher(id string) (WatcherView, error) {
	if err := s.requireManager(); err != nil {
		return WatcherView{}, err
	}
	h, err := s.mgr.Get(id)
	if err != nil {
		return WatcherView{}, err
	}
	return viewOf(h), nil
}

// UpdateWatcher changes a watcher's settings. Ignore patterns apply at once;
// the rest wait for RestartWatcher.
func (s *Service) UpdateWatcher(id string, req manager.UpdateRequest) (manager.UpdateResult, error) {
	if err := s.requireManager(); err != nil {
		return manager.UpdateResult{}, err
	}
	return s.mgr.Update(id, req)
}

// RestartWatcher restarts a watcher under the same ID, applying pending
// settings.
func (s *Service) RestartWatcher(ctx context.Context, id string) (WatcherView, error) {
	if err := s.requireManager(); err != nil {
		return WatcherView{}, err
	}
	h, err := s.mgr.Restart(ctx, id)
	if err != nil {
		return WatcherView{}, err
	}
	return viewOf(h), nil
}
