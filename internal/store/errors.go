package store

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a store error with an HTTP status code.
type Error struct {
	Code    int    // HTTP status code
	Message string // User-facing message
	Err     error  // Underlying error (optional)
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches store errors by status code and message so that wrapped
// copies created by WithCause still satisfy errors.Is against the sentinel.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// HTTPCode returns the HTTP status code associated with this error.
func (e *Error) HTTPCode() int { return e.Code }

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Err: err}
}

// Sentinel errors.
var (
	ErrNotFound = &Error{
		Code:    http.StatusNotFound,
		Message: "document not found",
	}

	ErrAlreadyExists = &Error{
		Code:    http.StatusConflict,
		Message: "document already exists",
	}

	// ErrAborted means a transaction lost a race with a concurrent writer.
	// Nothing was written; the caller may retry.
	ErrAborted = &Error{
		Code:    http.StatusConflict,
		Message: "transaction aborted by concurrent write",
	}

	// ErrUnavailable means the backend could not serve the request.
	ErrUnavailable = &Error{
		Code:    http.StatusServiceUnavailable,
		Message: "store unavailable",
	}

	ErrInvalidPath = &Error{
		Code:    http.StatusBadRequest,
		Message: "invalid document path",
	}

	ErrTooManyKeys = &Error{
		Code:    http.StatusBadRequest,
		Message: fmt.Sprintf("multi-get accepts at most %d keys", InQueryLimit),
	}

	ErrBatchTooLarge = &Error{
		Code:    http.StatusBadRequest,
		Message: fmt.Sprintf("batch accepts at most %d operations", BatchLimit),
	}
)

// IsTransient reports whether err may succeed on retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrAborted) || errors.Is(err, ErrUnavailable)
}
