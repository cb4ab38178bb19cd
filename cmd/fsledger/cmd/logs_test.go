package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fsledger.log")
	lines := []string{
		`{"time":"2024-05-01T12:00:00Z","level":"DEBUG","msg":"tool completed","tool":"get_events"}`,
		`{"time":"2024-05-01T12:00:01Z","level":"INFO","msg":"watcher started","watcher_id":"w1"}`,
		`{"time":"2024-05-01T12:00:02Z","level":"WARN","msg":"watch backend error","watcher_id":"w1"}`,
		`{"time":"2024-05-01T12:00:03Z","level":"ERROR","msg":"append failed","watcher_id":"w2"}`,
		`panic: not a record`,
	}
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func TestLogsCmd(t *testing.T) {
	path := writeLog(t)

	tests := []struct {
		name    string
		args    []string
		want    []string
		notWant []string
	}{
		{
			name: "all lines",
			args: nil,
			want: []string{"tool completed", "append failed", "panic"},
		},
		{
			name:    "tail",
			args:    []string{"-n", "2"},
			want:    []string{"append failed", "panic"},
			notWant: []string{"watch backend error"},
		},
		{
			name:    "level",
			args:    []string{"--level", "warn"},
			want:    []string{"watch backend error", "append failed", "panic"},
			notWant: []string{"tool completed", "watcher started"},
		},
		{
			name:    "filter",
			args:    []string{"--filter", `"watcher_id":"w1"`},
			want:    []string{"watcher started", "watch backend error"},
			notWant: []string{"append failed"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)

			out, err := execute(t, append([]string{"logs", "--file", path}, tt.args...)...)

			require.NoError(t, err)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
			for _, w := range tt.notWant {
				assert.NotContains(t, out, w)
			}
		})
	}
}

func TestLogsCmd_Errors(t *testing.T) {
	isolate(t)
	path := writeLog(t)

	_, err := execute(t, "logs", "--file", path+".missing")
	assert.Error(t, err)

	_, err = execute(t, "logs", "--file", path, "--level", "loud")
	assert.Error(t, err)

	_, err = execute(t, "logs", "--file", path, "--filter", "(")
	assert.Error(t, err)

	_, err = execute(t, "logs")
	assert.Error(t, err, "no default log file in a fresh home")
}
