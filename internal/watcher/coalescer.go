package watcher

import (
	"sort"
	"time"
)

// Coalescer folds rapid notifications for one path so that a single
// mutation yields a single event. Editors and os.WriteFile produce a
// create followed by one or more writes.
//
// Rules, for notifications of the same path inside the window:
//   - APPEARED + CHANGED = APPEARED (file is still new)
//   - CHANGED + CHANGED = CHANGED (first time kept)
//   - any + DISAPPEARED = pending one released, then DISAPPEARED
//
// The window is measured from the first notification, so a file written
// continuously is still reported once per window.
//
// The Coalescer is driven by the FileWatcher goroutine and is not safe for
// concurrent use.
type Coalescer struct {
	window  time.Duration
	pending map[string]Notification
	folded  uint64
}

// NewCoalescer creates a coalescer with the given window duration.
// A zero window passes everything through.
func NewCoalescer(window time.Duration) *Coalescer {
	return &Coalescer{
		window:  window,
		pending: make(map[string]Notification),
	}
}

// Add records n and returns the notifications that are ready now.
func (c *Coalescer) Add(n Notification) []Notification {
	if n.Kind == Disappeared {
		if p, ok := c.pending[n.Path]; ok {
			delete(c.pending, n.Path)
			return []Notification{p, n}
		}
		return []Notification{n}
	}

	if c.window <= 0 {
		return []Notification{n}
	}

	if _, ok := c.pending[n.Path]; ok {
		c.folded++
		return nil
	}
	c.pending[n.Path] = n
	return nil
}

// Due removes and returns pending notifications whose window ended at or
// before now, ordered by first-seen time.
func (c *Coalescer) Due(now time.Time) []Notification {
	var out []Notification
	for path, p := range c.pending {
		if !p.Time.Add(c.window).After(now) {
			out = append(out, p)
			delete(c.pending, path)
		}
	}
	sortByTime(out)
	return out
}

// Flush removes and returns every pending notification.
func (c *Coalescer) Flush() []Notification {
	out := make([]Notification, 0, len(c.pending))
	for _, p := range c.pending {
		out = append(out, p)
	}
	c.pending = make(map[string]Notification)
	sortByTime(out)
	return out
}

// NextDeadline returns when the oldest pending notification becomes due.
func (c *Coalescer) NextDeadline() (time.Time, bool) {
	var next time.Time
	for _, p := range c.pending {
		if d := p.Time.Add(c.window); next.IsZero() || d.Before(next) {
			next = d
		}
	}
	return next, !next.IsZero()
}

// Len returns the number of pending notifications.
func (c *Coalescer) Len() int {
	return len(c.pending)
}

// Folded returns how many notifications were merged into a pending one.
func (c *Coalescer) Folded() uint64 {
	return c.folded
}

func sortByTime(ns []Notification) {
	sort.SliceStable(ns, func(i, j int) bool {
		if ns[i].Time.Equal(ns[j].Time) {
			return ns[i].Path < ns[j].Path
		}
		return ns[i].Time.Before(ns[j].Time)
	})
}
