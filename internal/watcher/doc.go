// Package watcher turns raw filesystem notifications for one root into
// normalized ledger events.
//
// A FileWatcher owns one Backend, either fsnotify for efficient event-based
// watching or polling for environments where fsnotify fails (network mounts,
// Docker volumes). Notifications pass through:
//
//   - the ignore Matcher (glob patterns relative to the root)
//   - the Coalescer, which folds create/write bursts for one path
//   - classification: created, modified, deleted or renamed
//
// Native watch APIs do not report renames uniformly, so a disappearance is
// held for the correlation window. An appearance inside that window consumes
// it and becomes one renamed event; otherwise the sweep emits it as deleted,
// stamped with the original deletion time. This is a heuristic: an unrelated
// delete and create close together are reported as a rename.
//
// All classification for one watcher runs on a single goroutine, so the
// deletion cache and size table need no locking.
//
// Usage:
//
//	fw, err := watcher.New(id, cfg, watcher.Deps{Appender: l, Hasher: engine}, watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	if err := fw.Start(ctx); err != nil {
//	    return err
//	}
//	defer fw.Stop()
package watcher
