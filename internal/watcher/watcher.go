package watcher

import (
	"context"
	"fmt"
	"time"

	fserrors "github.com/Aman-CERP/fsledger/internal/errors"
	"github.com/Aman-CERP/fsledger/internal/hash"
)

// Kind is the raw notification kind reported by a backend.
type Kind int

const (
	// Appeared indicates a path came into existence.
	Appeared Kind = iota
	// Changed indicates the content of an existing path changed.
	Changed
	// Disappeared indicates a path no longer exists under its name.
	Disappeared
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case Appeared:
		return "APPEARED"
	case Changed:
		return "CHANGED"
	case Disappeared:
		return "DISAPPEARED"
	default:
		return "UNKNOWN"
	}
}

// Notification is one raw change reported by a backend.
type Notification struct {
	// Path is absolute.
	Path string

	Kind Kind

	// IsDir indicates if the notification is for a directory.
	IsDir bool

	// Time is when the backend observed the change.
	Time time.Time
}

// Backend is a source of raw notifications for one root.
type Backend interface {
	// Start subscribes to root synchronously. A subscription failure is
	// returned here; after a successful Start the backend runs until Stop or
	// until it fails.
	Start(ctx context.Context, root string, recursive bool) error

	// Notifications is closed when the backend stops.
	Notifications() <-chan Notification

	// Errors delivers runtime failures. Errors for which IsFatal reports true
	// end the subscription.
	Errors() <-chan error

	// Stop releases the subscription. Safe to call multiple times.
	Stop() error

	// Name identifies the implementation ("fsnotify" or "polling").
	Name() string
}

// Backend names accepted by Options.Backend.
const (
	BackendAuto     = "auto"
	BackendFsnotify = "fsnotify"
	BackendPolling  = "polling"
)

// IsFatal reports whether a backend error ends the subscription.
func IsFatal(err error) bool {
	switch fserrors.GetCode(err) {
	case fserrors.ErrCodeWatchLimit, fserrors.ErrCodeWatchSubscribe:
		return true
	default:
		return false
	}
}

// Config is what a caller supplies to watch one root.
type Config struct {
	Path           string         `json:"path" yaml:"path"`
	Recursive      bool           `json:"recursive" yaml:"recursive"`
	IgnorePatterns []string       `json:"ignorePatterns" yaml:"ignore_patterns"`
	CalculateHash  bool           `json:"calculateHash" yaml:"calculate_hash"`
	HashAlgorithm  hash.Algorithm `json:"hashAlgorithm" yaml:"hash_algorithm"`
}

// Validate checks the fields that can be checked without touching the filesystem.
func (c Config) Validate() error {
	if c.Path == "" {
		return fserrors.ValidationError("path is required", nil)
	}
	if _, err := hash.ParseAlgorithm(string(c.HashAlgorithm)); err != nil {
		return err
	}
	if _, err := NewMatcher(c.IgnorePatterns); err != nil {
		return err
	}
	return nil
}

// Options configures the watcher behavior.
type Options struct {
	// Backend selects the notification source: auto, fsnotify or polling.
	// Default: auto
	Backend string

	// CorrelationWindow is the longest gap between a disappearance and an
	// appearance that still counts as a rename.
	// Default: 500ms
	CorrelationWindow time.Duration

	// CoalesceWindow is how long appeared/changed notifications for one path
	// are held so bursts fold into one.
	// Default: 50ms
	CoalesceWindow time.Duration

	// PollInterval is the interval for the polling backend.
	// Default: 2s
	PollInterval time.Duration

	// EventBufferSize is the size of the backend notification buffer.
	// Default: 1000
	EventBufferSize int

	// StopGrace bounds how long Stop waits for pending events to be written.
	// Default: 2s
	StopGrace time.Duration

	// DefaultIgnore patterns apply to every watcher in addition to its own.
	DefaultIgnore []string

	// ExcludePaths are absolute paths never reported, such as the ledger itself.
	ExcludePaths []string

	// Retry is the append retry policy.
	Retry fserrors.RetryConfig
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		Backend:           BackendAuto,
		CorrelationWindow: 500 * time.Millisecond,
		CoalesceWindow:    50 * time.Millisecond,
		PollInterval:      2 * time.Second,
		EventBufferSize:   1000,
		StopGrace:         2 * time.Second,
		DefaultIgnore:     []string{".git", "*.swp", "*.swx", "*~", ".DS_Store"},
		Retry:             fserrors.DefaultRetryConfig(),
	}
}

// Validate validates the options and returns an error if invalid.
func (o Options) Validate() error {
	switch o.Backend {
	case "", BackendAuto, BackendFsnotify, BackendPolling:
	default:
		return fserrors.ValidationError(fmt.Sprintf("unknown watch backend %q", o.Backend), nil)
	}
	if o.CorrelationWindow < 0 || o.CoalesceWindow < 0 || o.StopGrace < 0 || o.PollInterval < 0 {
		return fserrors.ValidationError("watch durations must not be negative", nil)
	}
	if _, err := NewMatcher(o.DefaultIgnore); err != nil {
		return err
	}
	return nil
}

// WithDefaults returns options with defaults applied for zero values.
// DefaultIgnore is left alone so callers can disable it with an empty list.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.Backend == "" {
		o.Backend = defaults.Backend
	}
	if o.CorrelationWindow == 0 {
		o.CorrelationWindow = defaults.CorrelationWindow
	}
	if o.CoalesceWindow == 0 {
		o.CoalesceWindow = defaults.CoalesceWindow
	}
	if o.PollInterval == 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.EventBufferSize == 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	if o.StopGrace == 0 {
		o.StopGrace = defaults.StopGrace
	}
	if o.Retry.Multiplier == 0 {
		o.Retry = defaults.Retry
	}
	return o
}
