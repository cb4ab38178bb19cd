package watcher

import (
	"time"
)

// pendingDeletion is a disappearance waiting to become either half of a
// rename or a deleted event.
type pendingDeletion struct {
	path      string
	deletedAt time.Time
	expiresAt time.Time
	isDir     bool
	size      *int64
}

// deletionCache is an expiring list of pending deletions ordered by
// deletedAt. Entries leave it by being taken or by expiring; there are no
// per-entry timers.
type deletionCache struct {
	window  time.Duration
	entries []*pendingDeletion
}

func newDeletionCache(window time.Duration) *deletionCache {
	return &deletionCache{window: window}
}

func (c *deletionCache) add(path string, at time.Time, isDir bool, size *int64) {
	d := &pendingDeletion{
		path:      path,
		deletedAt: at,
		expiresAt: at.Add(c.window),
		isDir:     isDir,
		size:      size,
	}
	i := len(c.entries)
	for i > 0 && c.entries[i-1].deletedAt.After(at) {
		i--
	}
	c.entries = append(c.entries, nil)
	copy(c.entries[i+1:], c.entries[i:])
	c.entries[i] = d
}

// take removes and returns the entry an appearance at path and time at
// consumes. An entry for the same path wins; otherwise the earliest entry of
// the same kind (file or directory) within the window is used.
func (c *deletionCache) take(path string, at time.Time, isDir bool) *pendingDeletion {
	match := -1
	for i, d := range c.entries {
		if d.isDir != isDir || !c.within(d, at) {
			continue
		}
		if d.path == path {
			match = i
			break
		}
		if match < 0 {
			match = i
		}
	}
	if match < 0 {
		return nil
	}
	d := c.entries[match]
	c.entries = append(c.entries[:match], c.entries[match+1:]...)
	return d
}

func (c *deletionCache) within(d *pendingDeletion, at time.Time) bool {
	gap := at.Sub(d.deletedAt)
	if gap < 0 {
		gap = -gap
	}
	return gap <= c.window
}

// expired removes and returns entries whose expiresAt is at or before cutoff.
func (c *deletionCache) expired(cutoff time.Time) []*pendingDeletion {
	var out []*pendingDeletion
	kept := c.entries[:0]
	for _, d := range c.entries {
		if !d.expiresAt.After(cutoff) {
			out = append(out, d)
		} else {
			kept = append(kept, d)
		}
	}
	for i := len(kept); i < len(c.entries); i++ {
		c.entries[i] = nil
	}
	c.entries = kept
	return out
}

// drain removes and returns every entry.
func (c *deletionCache) drain() []*pendingDeletion {
	out := c.entries
	c.entries = nil
	return out
}

func (c *deletionCache) count() int {
	return len(c.entries)
}
