package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fserrors "github.com/Aman-CERP/fsledger/internal/errors"
)

// isolate points the user config at an empty directory and clears FSLEDGER_* overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	for _, k := range []string{
		"FSLEDGER_DATA_DIR", "FSLEDGER_LEDGER_PATH", "FSLEDGER_WATCH_BACKEND",
		"FSLEDGER_POLL_INTERVAL", "FSLEDGER_CORRELATION_WINDOW", "FSLEDGER_MAX_RESTARTS",
		"FSLEDGER_HASH_ALGORITHM", "FSLEDGER_HASH_MAX_BYTES", "FSLEDGER_LOG_LEVEL",
		"FSLEDGER_TRANSPORT",
	} {
		t.Setenv(k, "")
	}
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	// Given: no configuration file exists
	cfg := NewConfig()

	// Then: all defaults should be applied
	require.NotNil(t, cfg)
	assert.Equal(t, "auto", cfg.Watch.Backend)
	assert.Equal(t, "500ms", cfg.Watch.CorrelationWindow)
	assert.Equal(t, "50ms", cfg.Watch.CoalesceWindow)
	assert.Equal(t, 3, cfg.Watch.MaxRestarts)
	assert.Equal(t, 1000, cfg.Watch.EventBuffer)
	assert.Contains(t, cfg.Watch.DefaultIgnore, ".git")
	assert.Equal(t, "sha256", cfg.Hash.Algorithm)
	assert.Equal(t, int64(512<<20), cfg.Hash.MaxBytes)
	assert.Equal(t, 3, cfg.Ledger.AppendRetries)
	assert.Equal(t, "stdio", cfg.Server.Transport)
	assert.Empty(t, cfg.Watchers)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Paths(t *testing.T) {
	cfg := NewConfig()
	cfg.DataDir = "/var/lib/fsledger"

	assert.Equal(t, "/var/lib/fsledger/events.jsonl", cfg.LedgerPath())
	assert.Equal(t, "/var/lib/fsledger/exports", cfg.ExportsDir())

	cfg.Ledger.Path = "/data/ledger.jsonl"
	assert.Equal(t, "/data/ledger.jsonl", cfg.LedgerPath())
}

func TestLoad_LayersUserExplicitAndEnv(t *testing.T) {
	// Given: a user config, an explicit config and an env override
	xdg := isolate(t)
	writeFile(t, filepath.Join(xdg, "fsledger", "config.yaml"), `
watch:
  backend: polling
  poll_interval: 5s
hash:
  algorithm: blake3
`)
	explicit := filepath.Join(t.TempDir(), "custom.yaml")
	writeFile(t, explicit, `
watch:
  poll_interval: 1s
watchers:
  - path: /srv/data
    ignore_patterns: ["*.tmp"]
  - path: /srv/logs
    recursive: false
    calculate_hash: true
`)
	t.Setenv("FSLEDGER_HASH_ALGORITHM", "xxhash64")

	// When: the configuration is loaded
	cfg, err := Load(explicit)
	require.NoError(t, err)

	// Then: later layers win field by field
	assert.Equal(t, "polling", cfg.Watch.Backend)
	assert.Equal(t, "1s", cfg.Watch.PollInterval)
	assert.Equal(t, "xxhash64", cfg.Hash.Algorithm)
	assert.Equal(t, "500ms", cfg.Watch.CorrelationWindow)

	require.Len(t, cfg.Watchers, 2)
	assert.True(t, cfg.Watchers[0].IsRecursive())
	assert.Equal(t, []string{"*.tmp"}, cfg.Watchers[0].IgnorePatterns)
	assert.False(t, cfg.Watchers[1].IsRecursive())
	assert.True(t, cfg.Watchers[1].CalculateHash)
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	isolate(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))

	require.Error(t, err)
	assert.Equal(t, fserrors.ErrCodeConfigNotFound, fserrors.GetCode(err))
}

func TestLoad_InvalidYAML(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	writeFile(t, path, "watch: [unterminated")

	_, err := Load(path)

	require.Error(t, err)
	assert.Equal(t, fserrors.ErrCodeConfigInvalid, fserrors.GetCode(err))
}

func TestLoad_EmptyDefaultIgnoreDisablesDefaults(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "c.yaml")
	writeFile(t, path, "watch:\n  default_ignore: []\n")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Empty(t, cfg.Watch.DefaultIgnore)
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("FSLEDGER_DATA_DIR", "/tmp/fsl")
	t.Setenv("FSLEDGER_MAX_RESTARTS", "-1")
	t.Setenv("FSLEDGER_HASH_MAX_BYTES", "1024")
	t.Setenv("FSLEDGER_LOG_LEVEL", "debug")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, "/tmp/fsl", cfg.DataDir)
	assert.Equal(t, -1, cfg.Watch.MaxRestarts)
	assert.Equal(t, int64(1024), cfg.Hash.MaxBytes)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
}

func TestLoad_BadEnvInteger(t *testing.T) {
	isolate(t)
	t.Setenv("FSLEDGER_MAX_RESTARTS", "many")

	_, err := Load("")

	assert.Equal(t, fserrors.ErrCodeConfigInvalid, fserrors.GetCode(err))
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"bad duration", func(c *Config) { c.Watch.CorrelationWindow = "soon" }},
		{"negative duration", func(c *Config) { c.Watch.StopGrace = "-1s" }},
		{"zero poll interval", func(c *Config) { c.Watch.PollInterval = "0s" }},
		{"unknown backend", func(c *Config) { c.Watch.Backend = "kqueue" }},
		{"restarts below -1", func(c *Config) { c.Watch.MaxRestarts = -2 }},
		{"unknown algorithm", func(c *Config) { c.Hash.Algorithm = "crc32" }},
		{"negative max bytes", func(c *Config) { c.Hash.MaxBytes = -1 }},
		{"sse transport", func(c *Config) { c.Server.Transport = "sse" }},
		{"bad log level", func(c *Config) { c.Server.LogLevel = "loud" }},
		{"negative retries", func(c *Config) { c.Ledger.AppendRetries = -1 }},
		{"watcher without path", func(c *Config) { c.Watchers = []WatcherConfig{{}} }},
		{"watcher bad algorithm", func(c *Config) {
			c.Watchers = []WatcherConfig{{Path: "/x", HashAlgorithm: "crc32"}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.modify(cfg)

			err := cfg.Validate()

			require.Error(t, err)
			assert.Equal(t, fserrors.ErrCodeConfigInvalid, fserrors.GetCode(err))
		})
	}
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 500*time.Millisecond, Duration("500ms"))
	assert.Equal(t, time.Duration(0), Duration("nope"))
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	isolate(t)
	cfg := NewConfig()
	cfg.Watch.Backend = "fsnotify"
	cfg.Watchers = []WatcherConfig{{Path: "/srv"}}
	path := filepath.Join(t.TempDir(), "out.yaml")

	require.NoError(t, cfg.WriteYAML(path))
	loaded, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "fsnotify", loaded.Watch.Backend)
	require.Len(t, loaded.Watchers, 1)
	assert.Equal(t, "/srv", loaded.Watchers[0].Path)
}
