package preflight

import (
	"os"
	"path/filepath"
)

const (
	// MinDiskSpaceBytes is the free space the ledger needs (100 MiB).
	MinDiskSpaceBytes = 100 << 20

	// MinFileDescriptors is the minimum required file descriptor limit.
	MinFileDescriptors = 1024

	// MinInotifyWatches is the inotify watch limit below which recursive
	// watchers over large trees are likely to fail.
	MinInotifyWatches = 8192
)

// existingParent returns path or its closest existing ancestor.
func existingParent(path string) string {
	for {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			return path
		}
		path = parent
	}
}
