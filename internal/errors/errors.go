// Package errors provides coded application errors shared across the service.
// Codes map onto HTTP statuses at the handler boundary; everything below the
// handler works in terms of codes only.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Error codes.
const (
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeConflict     = "CONFLICT"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeUnavailable  = "UNAVAILABLE"
	ErrCodeInternal     = "INTERNAL"
)

// Error is an application error with a stable machine-readable code.
type Error struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error with a code and message.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// NotFound reports a missing resource.
func NotFound(resource, id string) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// InvalidInput reports a caller error on a specific field.
func InvalidInput(field, message string) *Error {
	return &Error{
		Code:    ErrCodeInvalidInput,
		Message: fmt.Sprintf("%s: %s", field, message),
	}
}

// Unavailable reports an unreachable collaborator or store. Callers must
// propagate these, never convert them into a domain result.
func Unavailable(what string, err error) *Error {
	return &Error{
		Code:    ErrCodeUnavailable,
		Message: fmt.Sprintf("%s is unavailable", what),
		Err:     err,
	}
}

// CodeOf returns the code of err, or ErrCodeInternal when err carries none.
func CodeOf(err error) string {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}
