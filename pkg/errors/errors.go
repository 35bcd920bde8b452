package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors sharing the same code so clones compare equal to their template.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrNetwork            = New("NETWORK_ERROR", http.StatusServiceUnavailable, "network request failed")
	ErrTimeout            = New("TIMEOUT", http.StatusGatewayTimeout, "request timed out")
	ErrUpstream           = New("UPSTREAM_ERROR", http.StatusBadGateway, "upstream request failed")
	ErrSnapshotNotFound   = New("SNAPSHOT_NOT_FOUND", http.StatusNotFound, "no persisted snapshot")
	ErrSyncInProgress     = New("SYNC_IN_PROGRESS", http.StatusConflict, "sync already in progress")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(err, ErrTimeout.Code, ErrTimeout.Status, ErrTimeout.Message)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return Wrap(err, ErrTimeout.Code, ErrTimeout.Status, ErrTimeout.Message)
		}
		return Wrap(err, ErrNetwork.Code, ErrNetwork.Status, ErrNetwork.Message)
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// FromHTTPStatus maps a non-2xx upstream response into an *Error carrying that status.
// An empty message falls back to a generic user-facing text.
func FromHTTPStatus(status int, message string) *Error {
	if message == "" {
		message = "Something went wrong. Please try again."
	}
	switch {
	case status == http.StatusUnauthorized:
		return Clone(ErrUnauthorized, message)
	case status == http.StatusForbidden:
		return Clone(ErrForbidden, message)
	case status == http.StatusNotFound:
		return Clone(ErrNotFound, message)
	case status == http.StatusConflict:
		return Clone(ErrConflict, message)
	case status >= 400 && status < 500:
		return &Error{Code: ErrValidation.Code, Status: status, Message: message}
	case status >= 500:
		return &Error{Code: ErrUpstream.Code, Status: status, Message: message}
	default:
		return &Error{Code: ErrInternal.Code, Status: http.StatusInternalServerError, Message: message}
	}
}

// IsUnauthorized reports whether err carries a 401 status.
func IsUnauthorized(err error) bool {
	e := FromError(err)
	return e != nil && e.Status == http.StatusUnauthorized
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
