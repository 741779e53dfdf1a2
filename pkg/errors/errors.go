// Package errors provides structured error types for pkgferry.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the download and install phases
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: Input validation failures
//   - NOT_*, *_MISSING, *_NOT_FOUND: Missing preconditions or resources
//   - NETWORK_*, RETRIES_*: Network-related errors
//   - INTERNAL_*: Unexpected internal errors
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidAction, "unknown action %q", name)
//	if errors.Is(err, errors.ErrCodeInvalidAction) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeNetwork, origErr, "failed to fetch %s", url)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput     Code = "INVALID_INPUT"
	ErrCodeInvalidAction    Code = "INVALID_ACTION"
	ErrCodeInvalidPackage   Code = "INVALID_PACKAGE"
	ErrCodeInvalidVersion   Code = "INVALID_VERSION"
	ErrCodeInvalidFileName  Code = "INVALID_FILENAME"
	ErrCodeInvalidManifest  Code = "INVALID_MANIFEST"
	ErrCodeInvalidPath      Code = "INVALID_PATH"
	ErrCodeInvalidSelection Code = "INVALID_SELECTION"
	ErrCodeInvalidConfig    Code = "INVALID_CONFIG"

	// Missing preconditions and resources
	ErrCodeNotAdmin         Code = "NOT_ADMIN"
	ErrCodeArtifactMissing  Code = "ARTIFACT_MISSING"
	ErrCodePackageNotFound  Code = "PACKAGE_NOT_FOUND"
	ErrCodeToolUnavailable  Code = "TOOL_UNAVAILABLE"
	ErrCodeIndexToolFailed  Code = "INDEX_TOOL_FAILED"
	ErrCodeInstallFailed    Code = "INSTALL_FAILED"
	ErrCodeNoVersionMatched Code = "NO_VERSION_MATCHED"

	// Network errors
	ErrCodeNetwork          Code = "NETWORK_ERROR"
	ErrCodeRetriesExhausted Code = "RETRIES_EXHAUSTED"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix,
// followed by the cause when one is present.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Cause != nil {
			return e.Message + ": " + e.Cause.Error()
		}
		return e.Message
	}
	return err.Error()
}
