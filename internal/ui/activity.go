package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Aman-CERP/fsledger/internal/ledger"
)

// ActivityTracker aggregates recorded events for display: counts by type,
// the most recent events and a per-second rate history.
type ActivityTracker struct {
	mu sync.Mutex

	startTime time.Time
	now       func() time.Time

	total  int
	counts map[ledger.EventType]int
	recent []ledger.Event
	keep   int

	// bucket counts events since the last Tick.
	bucket    int
	lastTick  time.Time
	rate      *Sparkline
	peakRate  float64
	lastEvent time.Time
}

// Activity is a point-in-time copy of the tracker.
type Activity struct {
	Total     int
	Counts    map[ledger.EventType]int
	Recent    []ledger.Event
	Elapsed   time.Duration
	Rate      float64
	PeakRate  float64
	LastEvent time.Time
}

// NewActivityTracker keeps the newest keep events and a rate history of
// width samples. Zero selects defaults.
func NewActivityTracker(keep, width int) *ActivityTracker {
	if keep <= 0 {
		keep = 10
	}
	now := time.Now
	t := now()
	return &ActivityTracker{
		startTime: t,
		now:       now,
		counts:    make(map[ledger.EventType]int),
		keep:      keep,
		lastTick:  t,
		rate:      NewSparkline(width),
	}
}

// Record adds one event.
func (a *ActivityTracker) Record(e ledger.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++
	a.counts[e.EventType]++
	a.bucket++
	a.lastEvent = a.now()

	a.recent = append(a.recent, e)
	if len(a.recent) > a.keep {
		a.recent = a.recent[len(a.recent)-a.keep:]
	}
}

// Tick closes the current rate bucket. The dashboard calls it once a second.
func (a *ActivityTracker) Tick() {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	elapsed := now.Sub(a.lastTick).Seconds()
	if elapsed <= 0 {
		return
	}
	r := float64(a.bucket) / elapsed
	a.rate.Add(r)
	if r > a.peakRate {
		a.peakRate = r
	}
	a.bucket = 0
	a.lastTick = now
}

// Snapshot returns a copy of the current state.
func (a *ActivityTracker) Snapshot() Activity {
	a.mu.Lock()
	defer a.mu.Unlock()

	counts := make(map[ledger.EventType]int, len(a.counts))
	for k, v := range a.counts {
		counts[k] = v
	}
	return Activity{
		Total:     a.total,
		Counts:    counts,
		Recent:    append([]ledger.Event(nil), a.recent...),
		Elapsed:   a.now().Sub(a.startTime),
		Rate:      a.rate.Last(),
		PeakRate:  a.peakRate,
		LastEvent: a.lastEvent,
	}
}

// RenderRate renders the rate history at the given width.
func (a *ActivityTracker) RenderRate(width int) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rate.RenderWithWidth(width)
}

// summarizeCounts formats counts in ledger type order, for example
// "2 created, 1 renamed". Types with no events are left out.
func summarizeCounts(counts map[ledger.EventType]int) string {
	var parts []string
	for _, t := range ledger.EventTypes() {
		if n := counts[t]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, t))
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", h, m)
}
