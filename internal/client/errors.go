package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. Every error returned by this package wraps exactly one of them.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrValidation         = errors.New("validation failed")
	ErrSessionExpired     = errors.New("session expired")
	ErrSessionInvalidated = errors.New("session invalidated")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrNetworkUnreachable = errors.New("network unreachable")
	ErrServer             = errors.New("server error")
	ErrProtocol           = errors.New("unexpected response")
	ErrNoActiveSession    = errors.New("no active session")
	ErrRateLimited        = errors.New("rate limited")
)

// CodePermissionNotFound is the server error code for a (user, application)
// pair without a grant.
const CodePermissionNotFound = "permission_not_found"

// Error describes a failed client operation.
type Error struct {
	// Op is the client operation, e.g. "login" or "permissions.set".
	Op string

	// Kind is one of the Err* sentinels.
	Kind error

	// Status is the HTTP status code, or 0 when no response was received.
	Status int

	// Message is the server-supplied message, if any.
	Message string

	// Code is the server-supplied error code, if any.
	Code string

	// Err is the underlying transport or decoding error, if any.
	Err error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("client: %s: %v", e.Op, e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the sentinel kind carried by err, or nil.
func KindOf(err error) error {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return nil
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Status
	}
	return 0
}

// CodeOf returns the server error code carried by err, or "".
func CodeOf(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// kindForStatus maps a non-2xx status to an error kind.
func kindForStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return ErrSessionInvalidated
	case status == http.StatusForbidden:
		return ErrForbidden
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status >= http.StatusInternalServerError:
		return ErrServer
	case status >= http.StatusBadRequest:
		// 400, 409, 422 and any other client error.
		return ErrValidation
	default:
		return ErrProtocol
	}
}

func newError(op string, kind error) *Error {
	return &Error{Op: op, Kind: kind}
}
