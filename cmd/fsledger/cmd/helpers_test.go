package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/fsledger/internal/ledger"
)

// isolate points every fsledger location at a fresh temp home and returns the
// ledger path commands will use.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("FSLEDGER_DATA_DIR", filepath.Join(home, "data"))
	t.Setenv("FSLEDGER_LEDGER_PATH", "")
	return filepath.Join(home, "data", "events.jsonl")
}

// execute runs the root command with args and returns everything it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

var seedBase = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// seedLedger writes n events one hour apart, alternating watchers w1 and w2
// and cycling through the event types.
func seedLedger(t *testing.T, path string, n int) {
	t.Helper()
	l, err := ledger.Open(path, ledger.Options{})
	require.NoError(t, err)
	defer func() { require.NoError(t, l.Close()) }()

	types := ledger.EventTypes()
	for i := 0; i < n; i++ {
		e := &ledger.Event{
			WatcherID: []string{"w1", "w2"}[i%2],
			Timestamp: seedBase.Add(time.Duration(i) * time.Hour),
			EventType: types[i%len(types)],
			FilePath:  filepath.Join("/srv/site", string(rune('a'+i))+".txt"),
			NewSize:   ledger.Int64(int64(100 * (i + 1))),
		}
		if e.EventType == ledger.Renamed {
			e.OldPath = filepath.Join("/srv/site", "old.txt")
		}
		require.NoError(t, l.Append(context.Background(), e))
	}
}
