package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/fsledger/configs"
	"github.com/Aman-CERP/fsledger/internal/config"
)

func TestConfigCmd_HasSubcommands(t *testing.T) {
	// Given: root command
	cmd := NewRootCmd()

	// When: finding config command
	configCmd, _, err := cmd.Find([]string{"config"})
	require.NoError(t, err)

	// Then: config command should have its subcommands
	names := make(map[string]bool)
	for _, sc := range configCmd.Commands() {
		names[sc.Name()] = true
	}
	for _, want := range []string{"init", "show", "path", "restore"} {
		assert.True(t, names[want], "should have %s command", want)
	}
}

func TestConfigPathCmd(t *testing.T) {
	isolate(t)

	out, err := execute(t, "config", "path")

	require.NoError(t, err)
	assert.Equal(t, config.GetUserConfigPath(), strings.TrimSpace(out))
	assert.Equal(t, filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "fsledger", "config.yaml"), strings.TrimSpace(out))
}

func TestConfigInitCmd_WritesTemplate(t *testing.T) {
	// Given: no user config
	isolate(t)

	// When: running config init
	out, err := execute(t, "config", "init")

	// Then: the template is written
	require.NoError(t, err)
	assert.Contains(t, out, "Created user configuration")
	data, err := os.ReadFile(config.GetUserConfigPath())
	require.NoError(t, err)
	assert.Equal(t, configs.UserConfigTemplate, string(data))
}

func TestConfigInitCmd_ExistingWithoutForce(t *testing.T) {
	// Given: an existing user config
	isolate(t)
	path := config.GetUserConfigPath()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("version: 1\n"), 0o644))

	// When: running config init without --force
	out, err := execute(t, "config", "init")

	// Then: the file is untouched and the user is told about --force
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")
	assert.Contains(t, out, "--force")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", string(data))
}

func TestConfigInitCmd_ForceBacksUpAndRestore(t *testing.T) {
	// Given: an existing user config
	isolate(t)
	path := config.GetUserConfigPath()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("version: 1\n"), 0o644))

	// When: running config init --force
	out, err := execute(t, "config", "init", "--force")
	require.NoError(t, err)

	// Then: the template replaces the file and a backup exists
	assert.Contains(t, out, "Backup:")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, configs.UserConfigTemplate, string(data))
	backups, err := config.ListBackups(path)
	require.NoError(t, err)
	require.Len(t, backups, 1)

	// And: restore brings the old file back
	out, err = execute(t, "config", "restore", backups[0])
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration restored")
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", string(data))
}

func TestConfigRestoreCmd_NoBackups(t *testing.T) {
	isolate(t)

	_, err := execute(t, "config", "restore")

	assert.Error(t, err)
}

func TestConfigShowCmd_JSONReflectsOverrides(t *testing.T) {
	// Given: an explicit config file and an environment override
	isolate(t)
	dir := t.TempDir()
	file := filepath.Join(dir, "fsledger.yaml")
	require.NoError(t, os.WriteFile(file, []byte("hash:\n  algorithm: blake3\n"), 0o644))
	t.Setenv("FSLEDGER_LEDGER_PATH", filepath.Join(dir, "ledger.jsonl"))

	// When: showing the effective config as JSON
	out, err := execute(t, "--config", file, "config", "show", "--json")
	require.NoError(t, err)

	// Then: both layers are applied
	var cfg config.Config
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, "blake3", cfg.Hash.Algorithm)
	assert.Equal(t, filepath.Join(dir, "ledger.jsonl"), cfg.Ledger.Path)
	assert.Equal(t, "auto", cfg.Watch.Backend)
}

func TestConfigShowCmd_YAML(t *testing.T) {
	ledgerPath := isolate(t)

	out, err := execute(t, "config", "show")

	require.NoError(t, err)
	assert.Contains(t, out, "Effective configuration")
	assert.Contains(t, out, ledgerPath)
	assert.Contains(t, out, "correlation_window: 500ms")
}
