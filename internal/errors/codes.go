// Package errors provides structured error handling for fsledger.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Storage errors (ledger file, export files)
//   - 3XX: OS watch errors (subscription, watch limits, backend failures)
//   - 4XX: Validation errors (bad input, unknown or duplicate watchers)
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStorage indicates ledger and export I/O errors.
	CategoryStorage Category = "STORAGE"
	// CategoryWatch indicates OS notification subscription errors.
	CategoryWatch Category = "WATCH"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Storage errors (200-299)
	ErrCodeStorageIO     = "ERR_201_STORAGE_IO"
	ErrCodeLedgerLocked  = "ERR_202_LEDGER_LOCKED"
	ErrCodeLedgerCorrupt = "ERR_203_LEDGER_CORRUPT"

	// Watch errors (300-399)
	ErrCodeWatchSubscribe = "ERR_301_WATCH_SUBSCRIBE"
	ErrCodeWatchLimit     = "ERR_302_WATCH_LIMIT"
	ErrCodeWatchBackend   = "ERR_303_WATCH_BACKEND"

	// Validation errors (400-499)
	ErrCodeInvalidInput     = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidPath      = "ERR_402_INVALID_PATH"
	ErrCodeWatcherNotFound  = "ERR_404_WATCHER_NOT_FOUND"
	ErrCodeDuplicateWatcher = "ERR_409_DUPLICATE_WATCHER"

	// Internal errors (500-599)
	ErrCodeInternal   = "ERR_501_INTERNAL"
	ErrCodeHashFailed = "ERR_502_HASH_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "101" from "ERR_101_CONFIG_NOT_FOUND")
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStorage
	case '3':
		return CategoryWatch
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeLedgerCorrupt, ErrCodeLedgerLocked:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
// Transient ledger writes and backend hiccups are retried; watch limits are not,
// since retrying cannot free kernel watch descriptors.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeStorageIO, ErrCodeWatchBackend:
		return true
	default:
		return false
	}
}
