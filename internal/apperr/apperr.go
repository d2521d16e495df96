// Package apperr defines the structured error conditions that are allowed to
// cross a turn boundary. Lower-level errors (gorm, redis, provider HTTP) are
// wrapped at their origin and never serialized to clients.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindBadRequest   Kind = "bad_request"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindRateLimit    Kind = "rate_limit"
)

// Error is a kind:surface condition, e.g. "forbidden:chat".
type Error struct {
	Kind    Kind
	Surface string
	// Op names the logical storage operation for database failures
	// ("save_chat", "delete_chat_by_id", ...). Empty otherwise.
	Op    string
	msg   string
	cause error
}

func New(kind Kind, surface, msg string) *Error {
	return &Error{Kind: kind, Surface: surface, msg: msg}
}

// Database wraps a storage-layer failure under bad_request:database,
// tagged with the logical operation name.
func Database(op string, cause error) *Error {
	return &Error{
		Kind:    KindBadRequest,
		Surface: "database",
		Op:      op,
		msg:     fmt.Sprintf("database operation failed: %s", op),
		cause:   cause,
	}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s:%s: %s: %v", e.Kind, e.Surface, e.msg, e.cause)
	}
	return fmt.Sprintf("%s:%s: %s", e.Kind, e.Surface, e.msg)
}

func (e *Error) Unwrap() error { return e.cause }

// Code returns the machine-readable "kind:surface" string.
func (e *Error) Code() string { return string(e.Kind) + ":" + e.Surface }

// Message returns the user-visible message. The wrapped cause is
// intentionally excluded.
func (e *Error) Message() string { return e.msg }

func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// From extracts an *Error from err, or nil when err carries none.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	e := From(err)
	return e != nil && e.Kind == kind
}
