// Package errors provides structured error types for stitch.
//
// Error codes give the CLI and the HTTP API one vocabulary for failures:
//   - EMPTY_INPUT: a stage needs at least one layer and got none
//   - DEGENERATE_GEOMETRY: a computed canvas has non-positive width or height
//   - INVALID_*: input validation failures (paths, formats, options)
//   - INTERNAL_*: unexpected internal errors
//
// # Usage
//
//	err := errors.New(errors.ErrCodeEmptyInput, "no layers to join")
//	if errors.Is(err, errors.ErrCodeEmptyInput) {
//	    // Handle empty input
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeFileNotFound, origErr, "open %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Core invariant violations
	ErrCodeEmptyInput         Code = "EMPTY_INPUT"
	ErrCodeDegenerateGeometry Code = "DEGENERATE_GEOMETRY"

	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidPath   Code = "INVALID_PATH"
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"
	ErrCodeInvalidMetric Code = "INVALID_METRIC"

	// Resource errors
	ErrCodeFileNotFound Code = "FILE_NOT_FOUND"
	ErrCodeFileExists   Code = "FILE_EXISTS"

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
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsInputError reports whether err was caused by bad caller input rather than
// an internal failure. The HTTP API maps these to 4xx responses.
func IsInputError(err error) bool {
	switch GetCode(err) {
	case ErrCodeEmptyInput, ErrCodeInvalidInput, ErrCodeInvalidPath,
		ErrCodeInvalidFormat, ErrCodeInvalidMetric, ErrCodeFileNotFound, ErrCodeFileExists:
		return true
	}
	return false
}
