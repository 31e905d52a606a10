// Package errors provides structured error types for mprscape.
//
// Every failure surfaced by the reconciliation engines carries a
// machine-readable [Code] so that the CLI and the HTTP API can report it
// consistently without string matching.
//
// # Error Codes
//
//   - CONFIGURATION: tip mapping is missing, dangling or ambiguous
//   - INVALID_COST: a cost is negative, non-finite or out of range
//   - STRUCTURAL: a tree is not a rooted binary tree
//   - CLUSTER_COUNT: cluster count outside [1, number of MPRs]
//   - INVALID_*: other input validation failures
//   - NOT_FOUND: a referenced node, file or result does not exist
//   - INTERNAL_ERROR: an invariant was violated
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidCost, "loss cost %v is negative", c)
//	if errors.Is(err, errors.ErrCodeInvalidCost) {
//	    // Handle invalid cost
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeStructural, origErr, "host tree")
//
// None of these errors are retryable: they are produced by deterministic
// validation and repeating the call with the same input fails again.
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Problem errors
	ErrCodeConfiguration Code = "CONFIGURATION"
	ErrCodeInvalidCost   Code = "INVALID_COST"
	ErrCodeStructural    Code = "STRUCTURAL"
	ErrCodeClusterCount  Code = "CLUSTER_COUNT"

	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"
	ErrCodeInvalidPath   Code = "INVALID_PATH"

	// Resource not found errors
	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeFileNotFound Code = "FILE_NOT_FOUND"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
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
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsClientError reports whether err was caused by bad input rather than
// by a failure of the engine itself.
func IsClientError(err error) bool {
	switch GetCode(err) {
	case ErrCodeConfiguration, ErrCodeInvalidCost, ErrCodeStructural,
		ErrCodeClusterCount, ErrCodeInvalidInput, ErrCodeInvalidFormat,
		ErrCodeInvalidPath:
		return true
	}
	return false
}
