// Package apperrors provides structured application errors with retryability classification.
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for classification via errors.Is().
var (
	ErrValidation        = errors.New("validation error")
	ErrNetwork           = errors.New("network error")
	ErrResource          = errors.New("resource error")
	ErrIO                = errors.New("io error")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
)

// Error provides a structured error with context.
type Error struct {
	Sentinel error  // Wrapped sentinel for errors.Is() classification
	Message  string // Human-readable message
	Field    string // For validation errors (e.g., "sample_id", "pipeline")
	Resource string // For not found errors (e.g., "project", "analysis")
	Op       string // Operation that failed (e.g., "api.createAnalysis")
	Cause    error  // Underlying error
}

// Error returns the human-readable error message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the sentinel error for errors.Is() classification.
func (e *Error) Unwrap() error {
	return e.Sentinel
}

// Validation creates a validation error for a specific field.
// Validation errors are never retried.
func Validation(field, message string) error {
	return &Error{
		Sentinel: ErrValidation,
		Message:  message,
		Field:    field,
	}
}

// Network creates a transient network error. Network errors are retryable.
func Network(op string, cause error) error {
	return &Error{
		Sentinel: ErrNetwork,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

// Resource creates a platform resource error (quota, capacity).
// Resource errors are not retryable.
func Resource(op, message string) error {
	return &Error{
		Sentinel: ErrResource,
		Message:  message,
		Op:       op,
	}
}

// IO creates a local I/O error (disk, checksum). IO errors are retryable.
func IO(op string, cause error) error {
	return &Error{
		Sentinel: ErrIO,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

// NotFound creates a not found error for a platform resource.
func NotFound(resource, id string) error {
	return &Error{
		Sentinel: ErrNotFound,
		Message:  fmt.Sprintf("%s %s not found", resource, id),
		Resource: resource,
	}
}

// InvalidTransition creates a state machine consistency error.
// Surfacing one indicates a bug in the caller, not a job failure.
func InvalidTransition(message string) error {
	return &Error{
		Sentinel: ErrInvalidTransition,
		Message:  message,
	}
}

// Retryable reports whether an error is transient and worth retrying.
// Only network and local I/O failures qualify.
func Retryable(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrIO)
}
