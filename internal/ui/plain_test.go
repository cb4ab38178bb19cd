package ui

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/fsledger/internal/ledger"
	"github.com/Aman-CERP/fsledger/internal/manager"
	"github.com/Aman-CERP/fsledger/internal/service"
)

func TestPlainRenderer_Lifecycle(t *testing.T) {
	// Given: a plain renderer writing to a buffer
	var buf bytes.Buffer
	r := NewPlainRenderer(NewConfig(&buf, WithLedgerPath("/data/events.jsonl")))

	// When: it starts, records an event and stops
	require.NoError(t, r.Start(context.Background(), []service.WatcherView{{
		ID: "0b7e3f7c-1111-2222-3333-444455556666", Path: "/src/app",
		Status: manager.StatusActive, Backend: "polling",
	}}))
	r.Event(ledger.Event{
		EventType: ledger.Created, FilePath: "/src/app/notes.txt",
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, r.Stop())

	// Then: the watcher, the ledger, the event and the summary are printed
	out := buf.String()
	assert.Contains(t, out, "/src/app")
	assert.Contains(t, out, "Ledger: /data/events.jsonl")
	assert.Contains(t, out, "notes.txt")
	assert.Contains(t, out, "Stopping watchers")
	assert.Contains(t, out, "1 created")
}

func TestPlainRenderer_NeverQuitsOnItsOwn(t *testing.T) {
	r := NewPlainRenderer(NewConfig(&bytes.Buffer{}))

	select {
	case <-r.Done():
		t.Fatal("plain renderer should not signal done")
	default:
	}
}
