package watcher

import (
	"context"
	"errors"
	"log/slog"

	fserrors "github.com/Aman-CERP/fsledger/internal/errors"
)

// startBackend creates and starts the backend named by name. In auto mode
// fsnotify is tried first and polling is used when the OS notification
// instance cannot be created. Failures to watch the root itself are returned
// as they are, since polling would fail the same way.
func startBackend(ctx context.Context, name, root string, recursive bool, opts BackendOptions) (Backend, error) {
	opts = opts.withDefaults()

	switch name {
	case BackendPolling:
		b := NewPollingBackend(opts)
		if err := b.Start(ctx, root, recursive); err != nil {
			return nil, err
		}
		return b, nil

	case BackendFsnotify:
		b := NewFsnotifyBackend(opts)
		if err := b.Start(ctx, root, recursive); err != nil {
			return nil, err
		}
		return b, nil

	case BackendAuto, "":
		b := NewFsnotifyBackend(opts)
		err := b.Start(ctx, root, recursive)
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, errBackendInit) && fserrors.GetCode(err) != fserrors.ErrCodeWatchLimit {
			return nil, err
		}

		opts.Logger.Warn("fsnotify unavailable, falling back to polling",
			append([]any{slog.String("path", root)}, fserrors.FormatForLog(err)...)...)
		p := NewPollingBackend(opts)
		if perr := p.Start(ctx, root, recursive); perr != nil {
			return nil, perr
		}
		return p, nil

	default:
		return nil, fserrors.ValidationError("unknown watch backend "+name, nil)
	}
}
