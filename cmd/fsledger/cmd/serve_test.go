package cmd

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/fsledger/internal/config"
	"github.com/Aman-CERP/fsledger/internal/manager"
)

func TestBuildServer_StartsConfiguredWatchers(t *testing.T) {
	// Given: a config with one valid and one missing watcher directory
	cfg := config.NewConfig()
	cfg.DataDir = t.TempDir()
	cfg.Watch.Backend = "polling"
	cfg.Watch.PollInterval = "50ms"
	dir := t.TempDir()
	notRecursive := false
	cfg.Watchers = []config.WatcherConfig{
		{Path: dir, Recursive: &notRecursive, IgnorePatterns: []string{"*.tmp"}},
		{Path: filepath.Join(dir, "missing")},
	}

	// When: building the server
	ctx := context.Background()
	a, srv, err := buildServer(ctx, cfg)
	require.NoError(t, err)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		require.NoError(t, a.Close(shutdownCtx))
	}()

	// Then: the valid watcher runs with its settings and every tool is registered
	list, err := a.svc.ListWatchers()
	require.NoError(t, err)
	require.Equal(t, 1, list.Count)
	w := list.Watchers[0]
	assert.Equal(t, manager.StatusActive, w.Status)
	assert.False(t, w.Recursive)
	assert.Equal(t, []string{"*.tmp"}, w.IgnorePatterns)
	assert.Len(t, srv.ListTools(), 11)
}

func TestBuildServer_LedgerInUse(t *testing.T) {
	// Given: a data directory whose ledger is already open for writing
	cfg := config.NewConfig()
	cfg.DataDir = t.TempDir()
	first, _, err := buildServer(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { _ = first.Close(context.Background()) }()

	// When: a second server starts on the same ledger
	_, _, err = buildServer(context.Background(), cfg)

	// Then: it refuses
	assert.Error(t, err)
}
