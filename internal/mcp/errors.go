// Package mcp exposes the fsledger operations as Model Context Protocol tools.
package mcp

import (
	"context"
	"errors"
	"fmt"

	fserrors "github.com/Aman-CERP/fsledger/internal/errors"
)

// Custom MCP error codes for fsledger.
const (
	// ErrCodeWatcherNotFound indicates an unknown watcher ID.
	ErrCodeWatcherNotFound = -32001

	// ErrCodeDuplicateWatcher indicates the root is already watched.
	ErrCodeDuplicateWatcher = -32002

	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout = -32003

	// ErrCodeWatchFailed indicates the OS subscription failed.
	ErrCodeWatchFailed = -32004

	// ErrCodeStorageFailed indicates ledger or export I/O failed.
	ErrCodeStorageFailed = -32005

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// ErrToolNotFound indicates the requested tool does not exist.
var ErrToolNotFound = errors.New("tool not found")

// MCPError represents an MCP protocol error. ErrorCode carries the fsledger
// code (ERR_XXX) when the failure came from the domain.
type MCPError struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	ErrorCode string `json:"error_code,omitempty"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("MCP error %d [%s]: %s", e.Code, e.ErrorCode, e.Message)
	}
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	var fe *fserrors.FsError
	if errors.As(err, &fe) {
		return mapFsError(fe)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	case errors.Is(err, ErrToolNotFound):
		return &MCPError{Code: ErrCodeMethodNotFound, Message: "Tool not found."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Tool '%s' not found.", name),
	}
}

func mapFsError(fe *fserrors.FsError) *MCPError {
	message := fe.Message
	if fe.Suggestion != "" {
		message = fmt.Sprintf("%s. %s", fe.Message, fe.Suggestion)
	}
	out := &MCPError{Message: message, ErrorCode: fe.Code}

	switch fe.Code {
	case fserrors.ErrCodeWatcherNotFound:
		out.Code = ErrCodeWatcherNotFound
		return out
	case fserrors.ErrCodeDuplicateWatcher:
		out.Code = ErrCodeDuplicateWatcher
		return out
	}

	switch fe.Category {
	case fserrors.CategoryValidation:
		out.Code = ErrCodeInvalidParams
	case fserrors.CategoryWatch:
		out.Code = ErrCodeWatchFailed
	case fserrors.CategoryStorage:
		out.Code = ErrCodeStorageFailed
	default: // config, internal and unknown
		out.Code = ErrCodeInternalError
	}
	return out
}
