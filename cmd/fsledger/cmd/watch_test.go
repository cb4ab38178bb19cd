package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fserrors "github.com/Aman-CERP/fsledger/internal/errors"
	"github.com/Aman-CERP/fsledger/internal/ledger"
	"github.com/Aman-CERP/fsledger/internal/service"
)

func TestWatchCmd_RecordsAndPrintsEvents(t *testing.T) {
	// Given: a polling watcher over an empty directory
	isolate(t)
	t.Setenv("FSLEDGER_POLL_INTERVAL", "50ms")
	dir := t.TempDir()

	go func() {
		time.Sleep(400 * time.Millisecond)
		_ = os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o644)
		_ = os.WriteFile(filepath.Join(dir, "scratch.tmp"), []byte("x"), 0o644)
	}()

	// When: watching for a bounded time
	out, err := execute(t, "watch", dir, "--backend", "polling", "--ignore", "*.tmp", "--hash", "--plain", "--for", "2s")
	require.NoError(t, err)

	// Then: the watcher table and the created event are printed
	assert.Contains(t, out, "Ledger:")
	assert.Contains(t, out, "notes.txt")
	assert.Contains(t, out, "sha256:")
	assert.NotContains(t, out, "scratch.tmp")
	assert.Contains(t, out, "Stopping watchers after")

	// And: the event is in the ledger
	out, err = execute(t, "events", "--json", "--type", "created")
	require.NoError(t, err)
	var res service.EventsResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Equal(t, 1, res.Count)
	assert.Equal(t, ledger.Created, res.Events[0].EventType)
	assert.Equal(t, filepath.Join(dir, "notes.txt"), res.Events[0].FilePath)
}

func TestWatchCmd_RejectsMissingDirectory(t *testing.T) {
	isolate(t)

	_, err := execute(t, "watch", filepath.Join(t.TempDir(), "missing"), "--for", "100ms")

	require.Error(t, err)
	assert.Equal(t, fserrors.ErrCodeInvalidPath, fserrors.GetCode(err))
}

func TestWatchCmd_RequiresDirectory(t *testing.T) {
	isolate(t)

	_, err := execute(t, "watch")

	assert.Error(t, err)
}
