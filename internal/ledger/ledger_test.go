package ledger

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fserrors "github.com/Aman-CERP/fsledger/internal/errors"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func openTemp(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "events.jsonl"), Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func appendAt(t *testing.T, l *Ledger, offset time.Duration, typ EventType, watcher, path string) Event {
	t.Helper()
	e := Event{
		WatcherID: watcher,
		Timestamp: base.Add(offset),
		EventType: typ,
		FilePath:  path,
	}
	require.NoError(t, l.Append(context.Background(), &e))
	return e
}

func TestAppend_AssignsIDAndTimestamp(t *testing.T) {
	// Given: an empty ledger
	l := openTemp(t)

	// When: appending an event without id or timestamp
	e := Event{WatcherID: "w1", EventType: Created, FilePath: "/d/a.txt", NewSize: Int64(5)}
	require.NoError(t, l.Append(context.Background(), &e))

	// Then: both are assigned and the event reads back intact
	assert.NotEmpty(t, e.EventID)
	assert.False(t, e.Timestamp.IsZero())

	got, err := l.Query(Filter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, e, got[0])
	assert.Nil(t, got[0].OldSize)
	assert.Equal(t, int64(5), *got[0].NewSize)
}

func TestAppend_RejectsInvalidEvent(t *testing.T) {
	l := openTemp(t)

	err := l.Append(context.Background(), &Event{EventType: "moved", FilePath: "/x"})
	assert.ErrorIs(t, err, fserrors.ErrValidation)

	err = l.Append(context.Background(), &Event{EventType: Created})
	assert.ErrorIs(t, err, fserrors.ErrValidation)
}

func TestAppend_WritesOneLinePerEvent(t *testing.T) {
	l := openTemp(t)
	for i := 0; i < 3; i++ {
		appendAt(t, l, time.Duration(i)*time.Second, Modified, "w1", "/d/f")
	}

	data, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	assert.Equal(t, 3, bytes.Count(data, []byte("\n")))
}

func TestQuery_LimitReturnsMostRecentAscending(t *testing.T) {
	// Given: events at t1..t10, appended out of order
	l := openTemp(t)
	for _, i := range []int{3, 1, 2, 10, 4, 5, 9, 6, 7, 8} {
		appendAt(t, l, time.Duration(i)*time.Minute, Created, "w1", fmt.Sprintf("/d/%d", i))
	}

	// When: querying with limit 3
	got, err := l.Query(Filter{Limit: 3})
	require.NoError(t, err)

	// Then: t8, t9, t10 in ascending order
	require.Len(t, got, 3)
	assert.Equal(t, "/d/8", got[0].FilePath)
	assert.Equal(t, "/d/9", got[1].FilePath)
	assert.Equal(t, "/d/10", got[2].FilePath)
}

func TestQuery_TypeFilterIsSubsetOfWatcherFilter(t *testing.T) {
	// Given: mixed events for two watchers
	l := openTemp(t)
	appendAt(t, l, 1*time.Second, Created, "W", "/a")
	appendAt(t, l, 2*time.Second, Deleted, "W", "/a")
	appendAt(t, l, 3*time.Second, Deleted, "other", "/b")
	appendAt(t, l, 4*time.Second, Modified, "W", "/c")
	appendAt(t, l, 5*time.Second, Deleted, "W", "/c")

	// When: filtering by type and watcher, and by watcher only
	deleted, err := l.Query(Filter{EventType: Deleted, WatcherID: "W"})
	require.NoError(t, err)
	all, err := l.Query(Filter{WatcherID: "W"})
	require.NoError(t, err)

	// Then: the typed result is a strict subset
	require.Len(t, deleted, 2)
	require.Len(t, all, 4)
	ids := make(map[string]bool)
	for _, e := range all {
		ids[e.EventID] = true
	}
	for _, e := range deleted {
		assert.True(t, ids[e.EventID])
		assert.Equal(t, Deleted, e.EventType)
	}
}

func TestQuery_SinceInclusiveUntilExclusive(t *testing.T) {
	l := openTemp(t)
	for i := 0; i < 5; i++ {
		appendAt(t, l, time.Duration(i)*time.Hour, Created, "w1", fmt.Sprintf("/%d", i))
	}

	got, err := l.Query(Filter{Since: base.Add(1 * time.Hour), Until: base.Add(3 * time.Hour)})
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "/1", got[0].FilePath)
	assert.Equal(t, "/2", got[1].FilePath)
}

func TestQuery_InvalidFilter(t *testing.T) {
	l := openTemp(t)

	_, err := l.Query(Filter{Limit: -1})
	assert.ErrorIs(t, err, fserrors.ErrValidation)

	_, err = l.Query(Filter{Since: base, Until: base.Add(-time.Hour)})
	assert.ErrorIs(t, err, fserrors.ErrValidation)
}

func TestClearBefore_RemovesOlderAndIsIdempotent(t *testing.T) {
	// Given: ten events one minute apart
	l := openTemp(t)
	for i := 0; i < 10; i++ {
		appendAt(t, l, time.Duration(i)*time.Minute, Created, "w1", fmt.Sprintf("/%d", i))
	}
	before, err := l.Query(Filter{Since: base.Add(4 * time.Minute)})
	require.NoError(t, err)

	// When: clearing before t4
	cutoff := base.Add(4 * time.Minute)
	removed, remaining, err := l.ClearBefore(cutoff)
	require.NoError(t, err)

	// Then: older events are gone and the rest are untouched
	assert.Equal(t, 4, removed)
	assert.Equal(t, 6, remaining)
	after, err := l.Query(Filter{})
	require.NoError(t, err)
	assert.Equal(t, before, after)

	// When: clearing again with the same cutoff
	removed, remaining, err = l.ClearBefore(cutoff)
	require.NoError(t, err)

	// Then: nothing more is removed
	assert.Equal(t, 0, removed)
	assert.Equal(t, 6, remaining)
}

func TestClearBefore_AppendsContinueAfterRewrite(t *testing.T) {
	l := openTemp(t)
	appendAt(t, l, 0, Created, "w1", "/old")
	appendAt(t, l, time.Hour, Created, "w1", "/new")

	_, _, err := l.ClearBefore(base.Add(time.Minute))
	require.NoError(t, err)
	appendAt(t, l, 2*time.Hour, Modified, "w1", "/new")

	got, err := l.Query(Filter{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, Modified, got[1].EventType)
}

func TestExport_JSONLMatchesQuery(t *testing.T) {
	// Given: a ledger with varied events
	l := openTemp(t)
	appendAt(t, l, 1*time.Second, Created, "w1", "/a")
	hash := "sha256:abc"
	e := Event{
		WatcherID: "w1", Timestamp: base.Add(2 * time.Second), EventType: Renamed,
		FilePath: "/b", OldPath: "/a", OldSize: Int64(3), NewSize: Int64(3), HashAfter: &hash,
	}
	require.NoError(t, l.Append(context.Background(), &e))
	appendAt(t, l, 3*time.Second, Deleted, "w2", "/c")

	filter := Filter{WatcherID: "w1"}

	// When: exporting as jsonl
	var buf bytes.Buffer
	n, err := l.Export(&buf, FormatJSONL, filter)
	require.NoError(t, err)

	// Then: parsing line by line reproduces Query
	want, err := l.Query(filter)
	require.NoError(t, err)
	assert.Equal(t, len(want), n)

	var got []Event
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var ev Event
		require.NoError(t, json.Unmarshal(sc.Bytes(), &ev))
		got = append(got, ev)
	}
	assert.Equal(t, want, got)
}

func TestExport_JSONArray(t *testing.T) {
	l := openTemp(t)
	appendAt(t, l, 0, Created, "w1", "/a")

	var buf bytes.Buffer
	_, err := l.Export(&buf, FormatJSON, Filter{})
	require.NoError(t, err)

	var got []Event
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Len(t, got, 1)
}

func TestExport_CSVHasHeaderAndEmptyNulls(t *testing.T) {
	l := openTemp(t)
	appendAt(t, l, 0, Deleted, "w1", "/a,b")

	var buf bytes.Buffer
	_, err := l.Export(&buf, FormatCSV, Filter{})
	require.NoError(t, err)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, "/a,b", records[1][4])
	assert.Equal(t, "", records[1][8])
	assert.Equal(t, "false", records[1][6])
	assert.Equal(t, "unknown", records[1][11])
	assert.Equal(t, "low", records[1][12])
}

func TestExport_DoesNotMutateLedger(t *testing.T) {
	l := openTemp(t)
	appendAt(t, l, 0, Created, "w1", "/a")
	before, err := os.ReadFile(l.Path())
	require.NoError(t, err)

	_, err = l.Export(&bytes.Buffer{}, FormatCSV, Filter{})
	require.NoError(t, err)

	after, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JSONL")
	require.NoError(t, err)
	assert.Equal(t, FormatJSONL, f)

	_, err = ParseFormat("xml")
	assert.ErrorIs(t, err, fserrors.ErrValidation)
}

func TestStats(t *testing.T) {
	// Given: events with known sizes
	l := openTemp(t)
	for _, e := range []Event{
		{WatcherID: "w1", Timestamp: base, EventType: Created, FilePath: "/a", NewSize: Int64(5)},
		{WatcherID: "w1", Timestamp: base.Add(time.Second), EventType: Modified, FilePath: "/a", OldSize: Int64(5), NewSize: Int64(12)},
		{WatcherID: "w1", Timestamp: base.Add(2 * time.Second), EventType: Modified, FilePath: "/a", OldSize: Int64(12), NewSize: Int64(2)},
		{WatcherID: "w2", Timestamp: base.Add(3 * time.Second), EventType: Deleted, FilePath: "/b", OldSize: Int64(100)},
	} {
		e := e
		require.NoError(t, l.Append(context.Background(), &e))
	}

	// When: computing stats for w1
	st, err := l.Stats("w1")
	require.NoError(t, err)

	// Then: counts, range and byte deltas are aggregated
	assert.Equal(t, 3, st.TotalEvents)
	assert.Equal(t, 1, st.CountsByType[Created])
	assert.Equal(t, 2, st.CountsByType[Modified])
	assert.Equal(t, 0, st.CountsByType[Deleted])
	assert.Equal(t, int64(17), st.TotalBytesChanged)
	require.NotNil(t, st.DateRange.First)
	assert.True(t, st.DateRange.First.Equal(base))
	assert.True(t, st.DateRange.Last.Equal(base.Add(2*time.Second)))

	// When: computing global stats
	all, err := l.Stats("")
	require.NoError(t, err)
	assert.Equal(t, 4, all.TotalEvents)
	assert.Equal(t, int64(17), all.TotalBytesChanged)
}

func TestStats_EmptyLedger(t *testing.T) {
	st, err := openTemp(t).Stats("")
	require.NoError(t, err)
	assert.Equal(t, 0, st.TotalEvents)
	assert.Nil(t, st.DateRange.First)
}

func TestOpen_RecoversTornTail(t *testing.T) {
	// Given: a ledger file ending in a partial line
	path := filepath.Join(t.TempDir(), "events.jsonl")
	good := `{"event_id":"1","watcher_id":"w","timestamp":"2025-03-01T12:00:00Z","event_type":"created","file_path":"/a","is_directory":false,"old_size":null,"new_size":null,"hash_before":null,"hash_after":null}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(good+`{"event_id":"2","wat`), 0o644))

	// When: opening it
	l, err := Open(path, Options{})
	require.NoError(t, err)
	defer l.Close()

	// Then: the partial line is gone and appends start on a fresh line
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, good, string(data))

	appendAt(t, l, time.Hour, Modified, "w", "/a")
	n, err := l.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestScan_SkipsCorruptLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("not json\n\n"), 0o644))

	l, err := Open(path, Options{})
	require.NoError(t, err)
	defer l.Close()
	appendAt(t, l, 0, Created, "w", "/a")

	n, err := l.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOpen_SecondWriterIsLocked(t *testing.T) {
	// Given: an open ledger
	l := openTemp(t)

	// When: opening it again for writing
	_, err := Open(l.Path(), Options{})

	// Then: the writer lock rejects it
	require.Error(t, err)
	assert.ErrorIs(t, err, fserrors.ErrLedgerLocked)
	assert.True(t, fserrors.IsFatal(err))
}

func TestOpenReadOnly(t *testing.T) {
	// Given: a ledger with one event
	l := openTemp(t)
	appendAt(t, l, 0, Created, "w", "/a")

	// When: opening read-only alongside the writer
	ro, err := OpenReadOnly(l.Path(), Options{})
	require.NoError(t, err)

	// Then: reads work and writes fail
	n, err := ro.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Error(t, ro.Append(context.Background(), &Event{EventType: Created, FilePath: "/b"}))
	_, _, err = ro.ClearBefore(base)
	assert.Error(t, err)

	missing, err := OpenReadOnly(filepath.Join(t.TempDir(), "none.jsonl"), Options{})
	require.NoError(t, err)
	n, err = missing.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestAppend_ConcurrentWritersAndReaders(t *testing.T) {
	// Given: a ledger shared by writers and readers
	l := openTemp(t)
	const writers, perWriter = 8, 25

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				e := Event{WatcherID: fmt.Sprintf("w%d", w), EventType: Modified, FilePath: "/f"}
				assert.NoError(t, l.Append(context.Background(), &e))
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				_, err := l.Query(Filter{})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	// Then: every event is stored exactly once
	n, err := l.Count()
	require.NoError(t, err)
	assert.Equal(t, writers*perWriter, n)
}

func TestOnAppend_CalledAfterCommit(t *testing.T) {
	var seen []Event
	l, err := Open(filepath.Join(t.TempDir(), "events.jsonl"), Options{
		OnAppend: func(e Event) { seen = append(seen, e) },
	})
	require.NoError(t, err)
	defer l.Close()

	appendAt(t, l, 0, Created, "w", "/a")

	require.Len(t, seen, 1)
	assert.Equal(t, "/a", seen[0].FilePath)
}

func TestClose_AppendAfterCloseFails(t *testing.T) {
	l, err := Open(filepath.Join(t.TempDir(), "events.jsonl"), Options{})
	require.NoError(t, err)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	err = l.Append(context.Background(), &Event{EventType: Created, FilePath: "/a"})
	assert.ErrorIs(t, err, fserrors.ErrStorage)
}

func TestQuery_SortsAppendOrderByTimestamp(t *testing.T) {
	// Given: a deletion recorded after a later creation, as the watcher
	// does once the correlation window expires
	l := openTemp(t)
	appendAt(t, l, 2*time.Second, Created, "w1", "/d/new")
	appendAt(t, l, 1*time.Second, Deleted, "w1", "/d/old")

	// When: querying without a limit
	got, err := l.Query(Filter{})
	require.NoError(t, err)

	// Then: results are ascending by timestamp, not by append order
	require.Len(t, got, 2)
	assert.Equal(t, "/d/old", got[0].FilePath)
	assert.Equal(t, "/d/new", got[1].FilePath)

	data, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	assert.Less(t, bytes.Index(data, []byte("/d/new")), bytes.Index(data, []byte("/d/old")))
}
