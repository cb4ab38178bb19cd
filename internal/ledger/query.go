package ledger

import (
	"sort"
)

// Query returns the events matching f, ordered by timestamp ascending.
// With a positive limit only the most recent matches are kept.
func (l *Ledger) Query(f Filter) ([]Event, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	events := make([]Event, 0)
	err := l.scan(func(e *Event, _ []byte) error {
		if f.Match(e) {
			events = append(events, *e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})

	if f.Limit > 0 && len(events) > f.Limit {
		events = events[len(events)-f.Limit:]
	}
	return events, nil
}

// Count returns the number of stored events.
func (l *Ledger) Count() (int, error) {
	n := 0
	err := l.scan(func(*Event, []byte) error {
		n++
		return nil
	})
	return n, err
}

// Stats aggregates all events, or those of one watcher when watcherID is set.
func (l *Ledger) Stats(watcherID string) (Stats, error) {
	st := Stats{
		WatcherID:        watcherID,
		CountsByType:     make(map[EventType]int, 4),
		CountsByCategory: make(map[Category]int, 7),
		CountsByPriority: make(map[Priority]int, 4),
	}
	for _, t := range EventTypes() {
		st.CountsByType[t] = 0
	}
	for _, c := range Categories() {
		st.CountsByCategory[c] = 0
	}
	for _, p := range Priorities() {
		st.CountsByPriority[p] = 0
	}

	err := l.scan(func(e *Event, _ []byte) error {
		if watcherID != "" && e.WatcherID != watcherID {
			return nil
		}
		st.TotalEvents++
		st.CountsByType[e.EventType]++
		st.CountsByCategory[e.Category]++
		st.CountsByPriority[e.Priority]++

		ts := e.Timestamp
		if st.DateRange.First == nil || ts.Before(*st.DateRange.First) {
			st.DateRange.First = &ts
		}
		if st.DateRange.Last == nil || ts.After(*st.DateRange.Last) {
			last := ts
			st.DateRange.Last = &last
		}

		if e.OldSize != nil && e.NewSize != nil {
			d := *e.NewSize - *e.OldSize
			if d < 0 {
				d = -d
			}
			st.TotalBytesChanged += d
		}
		return nil
	})
	if err != nil {
		return Stats{}, err
	}
	return st, nil
}
