package cmd

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/fsledger/internal/config"
	"github.com/Aman-CERP/fsledger/internal/preflight"
)

func TestDoctorCmd_JSON(t *testing.T) {
	// Given: a fresh home
	ledgerPath := isolate(t)
	dataDir := filepath.Dir(ledgerPath)

	// When: running doctor with JSON output
	out, err := execute(t, "doctor", "--json")
	require.NoError(t, err)

	// Then: every check is reported and the marker is written
	var report struct {
		Status string `json:"status"`
		Checks []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.NotEqual(t, "failed", report.Status)
	assert.Len(t, report.Checks, 5)
	assert.False(t, preflight.NeedsCheck(dataDir))
}

func TestDoctorCmd_Text(t *testing.T) {
	isolate(t)

	out, err := execute(t, "doctor")

	require.NoError(t, err)
	assert.Contains(t, out, "fsledger system check")
	assert.Contains(t, out, "data_dir")
	assert.Contains(t, out, "Status:")
}

func TestFirstRunCheck_RunsOnce(t *testing.T) {
	// Given: a data directory without a marker
	cfg := config.NewConfig()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")

	// When: the first-run check passes
	require.NoError(t, firstRunCheck(context.Background(), cfg))

	// Then: the marker is written and later runs skip the checks
	assert.False(t, preflight.NeedsCheck(cfg.DataDir))
	assert.NoError(t, firstRunCheck(context.Background(), cfg))
}
