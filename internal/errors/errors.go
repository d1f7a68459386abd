// Package errors provides typed error definitions for vortex.
// This package consolidates error handling and provides structured error types
// that can be used for better error classification and handling.
package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode represents a unique identifier for different error types
type ErrorCode string

const (
	// Discovery and compilation errors
	ErrValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrPortAllocation   ErrorCode = "PORT_ALLOCATION_FAILED"

	// Import errors
	ErrImportIncomplete ErrorCode = "IMPORT_INCOMPLETE"

	// Backend errors
	ErrBackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"
	ErrBackendCallFailed  ErrorCode = "BACKEND_CALL_FAILED"
	ErrOrphanDetected     ErrorCode = "ORPHAN_DETECTED"
	ErrVMNameInUse        ErrorCode = "VM_NAME_IN_USE"

	// Workspace and session errors
	ErrWorkspaceNotFound ErrorCode = "WORKSPACE_NOT_FOUND"
	ErrSessionNotFound   ErrorCode = "SESSION_NOT_FOUND"
	ErrInvalidState      ErrorCode = "INVALID_STATE"

	// Configuration errors
	ErrConfigNotFound ErrorCode = "CONFIG_NOT_FOUND"
	ErrConfigInvalid  ErrorCode = "CONFIG_INVALID"
	ErrConfigParse    ErrorCode = "CONFIG_PARSE"

	// Validation errors
	ErrInvalidPath ErrorCode = "INVALID_PATH"
	ErrInvalidPort ErrorCode = "INVALID_PORT"

	// Internal errors
	ErrInternal ErrorCode = "INTERNAL_ERROR"
	ErrTimeout  ErrorCode = "TIMEOUT"

	// File/IO errors
	ErrFileRead   ErrorCode = "FILE_READ"
	ErrFileWrite  ErrorCode = "FILE_WRITE"
	ErrFileSystem ErrorCode = "FILE_SYSTEM"
	ErrNotFound   ErrorCode = "NOT_FOUND"
)

// VortexError represents a structured error with additional context
type VortexError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Context    map[string]interface{} `json:"context,omitempty"`
	HTTPStatus int                    `json:"-"`
}

// Error implements the error interface
func (e *VortexError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *VortexError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *VortexError) WithContext(key string, value interface{}) *VortexError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCause adds the underlying cause error
func (e *VortexError) WithCause(cause error) *VortexError {
	e.Cause = cause
	return e
}

// GetHTTPStatus returns the appropriate HTTP status code for this error
func (e *VortexError) GetHTTPStatus() int {
	if e.HTTPStatus != 0 {
		return e.HTTPStatus
	}

	switch e.Code {
	case ErrWorkspaceNotFound, ErrSessionNotFound, ErrConfigNotFound, ErrNotFound:
		return http.StatusNotFound
	case ErrValidationFailed, ErrInvalidPath, ErrInvalidPort, ErrImportIncomplete:
		return http.StatusBadRequest
	case ErrVMNameInUse, ErrInvalidState:
		return http.StatusConflict
	case ErrTimeout:
		return http.StatusRequestTimeout
	case ErrBackendUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// New creates a new VortexError
func New(code ErrorCode, message string) *VortexError {
	return &VortexError{
		Code:    code,
		Message: message,
	}
}

// NewWithDetails creates a new VortexError with details
func NewWithDetails(code ErrorCode, message, details string) *VortexError {
	return &VortexError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// Wrap creates a new VortexError that wraps an existing error
func Wrap(code ErrorCode, message string, cause error) *VortexError {
	return &VortexError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WrapWithDetails creates a new VortexError with details that wraps an existing error
func WrapWithDetails(code ErrorCode, message, details string, cause error) *VortexError {
	return &VortexError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}

// IsVortexError checks if an error is a VortexError
func IsVortexError(err error) bool {
	_, ok := err.(*VortexError)
	return ok
}

// GetCode extracts the error code from an error, if it's a VortexError
func GetCode(err error) ErrorCode {
	if ve, ok := err.(*VortexError); ok {
		return ve.Code
	}
	return ""
}

// HasCode checks if an error has a specific error code
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}
