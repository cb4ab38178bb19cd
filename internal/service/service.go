// Package service is the query and control facade over the watcher manager
// and the event ledger. The MCP adapter and the CLI call it; it owns argument
// decoding and result shaping, and nothing else.
package service

import (
	"log/slog"
	"time"

	fserrors "github.com/Aman-CERP/fsledger/internal/errors"
	"github.com/Aman-CERP/fsledger/internal/hash"
	"github.com/Aman-CERP/fsledger/internal/ledger"
	"github.com/Aman-CERP/fsledger/internal/manager"
)

// DefaultEventsLimit is applied to GetEvents when the request leaves the
// limit unset.
const DefaultEventsLimit = 100

// Options configures a Service.
type Options struct {
	// ExportsDir receives exports that name no output path.
	ExportsDir string

	// HashAlgorithm is used when a request names none.
	// Default: sha256
	HashAlgorithm hash.Algorithm

	Logger *slog.Logger
}

// Service implements the external operations.
type Service struct {
	mgr    *manager.Manager
	ledger *ledger.Ledger
	hasher *hash.Engine
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Service. mgr may be nil for offline ledger tools; watcher
// operations then fail.
func New(mgr *manager.Manager, l *ledger.Ledger, hasher *hash.Engine, opts Options) *Service {
	if opts.HashAlgorithm == "" {
		opts.HashAlgorithm = hash.Default
	}
	if hasher == nil {
		hasher = hash.NewEngine(hash.DefaultOptions())
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		mgr:    mgr,
		ledger: l,
		hasher: hasher,
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
}

func (s *Service) requireManager() error {
	if s.mgr == nil {
		return fserrors.InternalError("watchers are only available in a running server", nil).
			WithSuggestion("Run `fsledger serve` or `fsledger watch`")
	}
	return nil
}

func (s *Service) requireLedger() error {
	if s.ledger == nil {
		return fserrors.InternalError("no ledger configured", nil)
	}
	return nil
}
