package logging

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPaths(t *testing.T) {
	assert.Equal(t, "fsledger.log", filepath.Base(DefaultLogPath()))
	assert.Contains(t, DefaultLogDir(), ".fsledger")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, 10, cfg.MaxSizeMB)
	assert.Equal(t, 5, cfg.MaxFiles)
	assert.True(t, cfg.WriteToStderr)
}

func TestSetup_WritesJSONToFile(t *testing.T) {
	// Given: file-only logging at warn
	path := filepath.Join(t.TempDir(), "logs", "test.log")
	logger, cleanup, err := Setup(Config{Level: "warn", FilePath: path})
	require.NoError(t, err)

	// When: records at several levels are logged
	logger.Info("hidden")
	logger.Warn("watch backend error", slog.String("watcher_id", "w1"))
	cleanup()

	// Then: only the warning is written, as JSON
	lines, err := TailLines(path, 10)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "watch backend error", rec["msg"])
	assert.Equal(t, "w1", rec["watcher_id"])
	assert.Equal(t, "WARN", rec["level"])
}

func TestSetup_FanoutToStderrFile(t *testing.T) {
	// Given: file logging plus a non-terminal stderr
	dir := t.TempDir()
	path := filepath.Join(dir, "a.log")
	stderr, err := os.Create(filepath.Join(dir, "stderr"))
	require.NoError(t, err)
	defer stderr.Close()

	logger, cleanup, err := setup(Config{Level: "debug", FilePath: path, WriteToStderr: true}, stderr)
	require.NoError(t, err)

	// When: a record with attrs and a group is logged
	logger.With(slog.String("root", "/r")).WithGroup("event").Debug("appended", slog.Int("n", 1))
	cleanup()

	// Then: both outputs receive it
	fileLines, err := TailLines(path, 10)
	require.NoError(t, err)
	require.Len(t, fileLines, 1)
	assert.Contains(t, fileLines[0], `"root":"/r"`)

	errLines, err := TailLines(stderr.Name(), 10)
	require.NoError(t, err)
	require.Len(t, errLines, 1)
	assert.Contains(t, errLines[0], `"event":{"n":1}`)
}

func TestSetup_NoOutputs(t *testing.T) {
	logger, cleanup, err := Setup(Config{})
	require.NoError(t, err)
	defer cleanup()

	assert.NotPanics(t, func() { logger.Info("dropped") })
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"loud":    slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestRotatingWriter_Rotates(t *testing.T) {
	// Given: a writer with a 1MB limit keeping 2 files
	path := filepath.Join(t.TempDir(), "r.log")
	w, err := NewRotatingWriter(path, 1, 2)
	require.NoError(t, err)
	defer w.Close()

	// When: well over 3MB is written
	line := strings.Repeat("x", 1023) + "\n"
	for i := 0; i < 4*1024; i++ {
		_, err := w.Write([]byte(line))
		require.NoError(t, err)
	}

	// Then: the current file and two rotated files exist, no more
	for _, p := range []string{path, path + ".1", path + ".2"} {
		info, err := os.Stat(p)
		require.NoError(t, err, p)
		assert.LessOrEqual(t, info.Size(), int64(1<<20))
	}
	_, err = os.Stat(path + ".3")
	assert.True(t, os.IsNotExist(err))
}

func TestRotatingWriter_WriteAfterClose(t *testing.T) {
	w, err := NewRotatingWriter(filepath.Join(t.TempDir(), "c.log"), 1, 1)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = w.Write([]byte("late\n"))

	assert.ErrorIs(t, err, os.ErrClosed)
	assert.NoError(t, w.Close())
}

func TestTailLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.log")
	var b strings.Builder
	for i := 1; i <= 10; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))

	lines, err := TailLines(path, 3)

	require.NoError(t, err)
	assert.Equal(t, []string{"line 8", "line 9", "line 10"}, lines)
}

func TestFindLogFile(t *testing.T) {
	existing := filepath.Join(t.TempDir(), "x.log")
	require.NoError(t, os.WriteFile(existing, nil, 0o644))

	got, err := FindLogFile(existing)
	require.NoError(t, err)
	assert.Equal(t, existing, got)

	_, err = FindLogFile(existing + ".missing")
	assert.Error(t, err)
}

func TestSetupMCPMode_LogsToFileOnly(t *testing.T) {
	// Given: the previous default logger, restored afterwards
	prev := slog.Default()
	defer slog.SetDefault(prev)
	path := filepath.Join(t.TempDir(), "mcp.log")

	// When: MCP mode is set up with an explicit file
	cleanup, err := SetupMCPMode("debug", path)
	require.NoError(t, err)
	slog.Debug("tool completed", slog.String("tool", "get_events"))
	cleanup()

	// Then: the file holds the init record and the debug record
	lines, err := TailLines(path, 10)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "MCP mode logging initialized")
	assert.Contains(t, lines[1], "get_events")
}
