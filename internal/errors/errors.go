package errors

import (
	"errors"
	"fmt"
	"syscall"
)

// FsError is the structured error type for fsledger.
// It provides rich context for error handling, logging, and user presentation.
type FsError struct {
	// Code is the unique error code (e.g., "ERR_404_WATCHER_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Storage, Watch, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *FsError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *FsError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with FsError.
func (e *FsError) Is(target error) bool {
	if t, ok := target.(*FsError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *FsError) WithDetail(key, value string) *FsError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *FsError) WithSuggestion(suggestion string) *FsError {
	e.Suggestion = suggestion
	return e
}

// New creates a new FsError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *FsError {
	return &FsError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an FsError from an existing error.
// The error's message becomes the FsError message.
func Wrap(code string, err error) *FsError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Sentinels usable as errors.Is targets; only the code is compared.
var (
	ErrValidation       = &FsError{Code: ErrCodeInvalidInput}
	ErrInvalidPath      = &FsError{Code: ErrCodeInvalidPath}
	ErrNotFound         = &FsError{Code: ErrCodeWatcherNotFound}
	ErrDuplicateWatcher = &FsError{Code: ErrCodeDuplicateWatcher}
	ErrStorage          = &FsError{Code: ErrCodeStorageIO}
	ErrLedgerLocked     = &FsError{Code: ErrCodeLedgerLocked}
	ErrWatchLimit       = &FsError{Code: ErrCodeWatchLimit}
)

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *FsError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *FsError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InvalidPathError reports a watch root that is missing or not a directory.
func InvalidPathError(path, reason string, cause error) *FsError {
	return New(ErrCodeInvalidPath, fmt.Sprintf("invalid path %q: %s", path, reason), cause).
		WithDetail("path", path)
}

// NotFoundError reports an unknown watcher ID.
func NotFoundError(id string) *FsError {
	return New(ErrCodeWatcherNotFound, fmt.Sprintf("watcher %q not found", id), nil).
		WithDetail("watcher_id", id).
		WithSuggestion("Use list_watchers to see the active watcher IDs")
}

// DuplicateWatcherError reports a second watcher on an already watched path.
func DuplicateWatcherError(path, existingID string) *FsError {
	return New(ErrCodeDuplicateWatcher,
		fmt.Sprintf("path %q is already watched by %s", path, existingID), nil).
		WithDetail("path", path).
		WithDetail("watcher_id", existingID).
		WithSuggestion("Stop the existing watcher or update its ignore patterns instead")
}

// OSWatchError creates a subscription error. Exhausted kernel resources
// (inotify watch or instance limits) are reported with ErrCodeWatchLimit.
func OSWatchError(message string, cause error) *FsError {
	if errors.Is(cause, syscall.ENOSPC) || errors.Is(cause, syscall.EMFILE) {
		return New(ErrCodeWatchLimit, message, cause).
			WithSuggestion("Raise fs.inotify.max_user_watches or use the polling backend")
	}
	return New(ErrCodeWatchSubscribe, message, cause)
}

// BackendError reports a runtime failure of a running notification backend.
func BackendError(message string, cause error) *FsError {
	return New(ErrCodeWatchBackend, message, cause)
}

// StorageError creates a ledger I/O error.
func StorageError(message string, cause error) *FsError {
	return New(ErrCodeStorageIO, message, cause)
}

// HashError creates a fingerprinting error. Callers log it and record a null hash.
func HashError(message string, cause error) *FsError {
	return New(ErrCodeHashFailed, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *FsError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error chain contains an FsError with Retryable set.
func IsRetryable(err error) bool {
	var fe *FsError
	if errors.As(err, &fe) {
		return fe.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	var fe *FsError
	if errors.As(err, &fe) {
		return fe.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from an FsError in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	var fe *FsError
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

// GetCategory extracts the category from an FsError in the chain.
func GetCategory(err error) Category {
	var fe *FsError
	if errors.As(err, &fe) {
		return fe.Category
	}
	return ""
}
