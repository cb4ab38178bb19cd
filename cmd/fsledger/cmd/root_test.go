package cmd

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fserrors "github.com/Aman-CERP/fsledger/internal/errors"
)

func TestRootCmd_HasSubcommands(t *testing.T) {
	// Given: the root command
	cmd := NewRootCmd()

	// When: listing subcommands
	names := make(map[string]bool)
	for _, sc := range cmd.Commands() {
		names[sc.Name()] = true
	}

	// Then: every command is registered
	for _, want := range []string{"serve", "watch", "events", "stats", "export", "clear", "hash", "config", "logs", "doctor", "version"} {
		assert.True(t, names[want], "missing %s command", want)
	}
}

func TestRootCmd_Help(t *testing.T) {
	isolate(t)

	out, err := execute(t, "--help")

	require.NoError(t, err)
	assert.Contains(t, out, "append-only")
	assert.Contains(t, out, "--config")
	assert.Contains(t, out, "--debug")
}

func TestRootCmd_VersionFlag(t *testing.T) {
	isolate(t)

	out, err := execute(t, "--version")

	require.NoError(t, err)
	assert.Contains(t, out, "fsledger version")
}

func TestRootCmd_MissingConfigFile(t *testing.T) {
	// Given: an isolated home
	isolate(t)

	// When: --config names a file that does not exist
	_, err := execute(t, "--config", "/nonexistent/fsledger.yaml", "stats")

	// Then: the config error surfaces with its code
	require.Error(t, err)
	assert.Equal(t, fserrors.ErrCodeConfigNotFound, fserrors.GetCode(err))
}

func TestRootCmd_DebugWritesLogFile(t *testing.T) {
	// Given: an isolated home
	isolate(t)

	// When: a command runs with --debug
	_, err := execute(t, "--debug", "events")
	require.NoError(t, err)

	// Then: the logs command finds the debug log
	out, err := execute(t, "logs", "--filter", "Debug logging enabled")
	require.NoError(t, err)
	assert.Contains(t, out, "Debug logging enabled")
}

func TestPrintError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want []string
	}{
		{
			name: "domain error shows code and hint",
			err:  fserrors.NotFoundError("w1"),
			want: []string{"Error:", "Code: " + fserrors.ErrCodeWatcherNotFound, "Hint:"},
		},
		{
			name: "plain error",
			err:  errors.New("unknown flag: --nope"),
			want: []string{"Error: unknown flag: --nope"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := new(bytes.Buffer)

			printError(buf, tt.err)

			for _, w := range tt.want {
				assert.Contains(t, buf.String(), w)
			}
		})
	}
}

func TestRootCmd_ProfileFlags(t *testing.T) {
	// Given: an isolated home and a profile directory
	isolate(t)
	dir := t.TempDir()
	heap := filepath.Join(dir, "heap.prof")

	// When: a command runs with --profile-mem
	_, err := execute(t, "--profile-mem", heap, "stats")

	// Then: the heap profile is written after the command
	require.NoError(t, err)
	assert.FileExists(t, heap)
}
