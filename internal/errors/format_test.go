package errors

import (
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForCLI_IncludesHintAndCode(t *testing.T) {
	// Given: an error with a suggestion
	err := NotFoundError("w-42")

	// When: formatting for CLI
	out := FormatForCLI(err)

	// Then: message, hint and code are all present
	assert.Contains(t, out, `Error: watcher "w-42" not found`)
	assert.Contains(t, out, "Hint: Use list_watchers")
	assert.Contains(t, out, "Code: ERR_404_WATCHER_NOT_FOUND")
}

func TestFormatForCLI_ForeignErrorIsInternal(t *testing.T) {
	out := FormatForCLI(errors.New("boom"))

	assert.Contains(t, out, "Error: boom")
	assert.Contains(t, out, ErrCodeInternal)
	assert.Empty(t, FormatForCLI(nil))
}

func TestFormatJSON_RoundTrips(t *testing.T) {
	// Given: a storage error with a cause and detail
	err := StorageError("append failed", errors.New("no space")).WithDetail("path", "/l")

	// When: formatting as JSON
	data, ferr := FormatJSON(err)
	require.NoError(t, ferr)

	// Then: fields are preserved
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, ErrCodeStorageIO, got["code"])
	assert.Equal(t, "STORAGE", got["category"])
	assert.Equal(t, "no space", got["cause"])
	assert.Equal(t, true, got["retryable"])
}

func TestFormatForLog_SortedDetails(t *testing.T) {
	// Given: an error with two details
	err := New(ErrCodeInvalidInput, "bad", nil).WithDetail("b", "2").WithDetail("a", "1")

	// When: building log attributes
	attrs := FormatForLog(err)

	// Then: details come last, in key order
	require.Len(t, attrs, 6)
	assert.Equal(t, "detail_a", attrs[4].(slog.Attr).Key)
	assert.Equal(t, "detail_b", attrs[5].(slog.Attr).Key)
}

func TestFormatForLog_PlainError(t *testing.T) {
	attrs := FormatForLog(errors.New("plain"))

	require.Len(t, attrs, 1)
	assert.Equal(t, "plain", attrs[0].(slog.Attr).Value.String())
	assert.Nil(t, FormatForLog(nil))
}
