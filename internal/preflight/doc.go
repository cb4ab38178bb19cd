// Package preflight checks that the machine can run fsledger before watchers
// start.
//
// The checks cover:
//   - Write access to the data directory
//   - Free disk space for the ledger (minimum 100 MiB)
//   - File descriptor limits (minimum 1024)
//   - inotify watch limits on Linux
//   - Whether another process holds the ledger
//
// Use the Checker type to run them:
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, preflight.Target{DataDir: dir, LedgerPath: path})
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
