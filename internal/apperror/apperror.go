// Package apperror defines the error kinds returned by the library services.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure independently of its message.
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindUnavailable  Kind = "unavailable"
	KindInvalidState Kind = "invalid_state"
	KindForbidden    Kind = "forbidden"
	KindConflict     Kind = "conflict"
	KindInvalid      Kind = "invalid"
	KindInternal     Kind = "internal"
)

// Refinement codes for KindInvalidState.
const (
	CodeAlreadyCompleted = "already_completed"
	CodeAlreadyCancelled = "already_cancelled"
)

// Error is the typed result every use case returns on failure.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Code when the target carries one, otherwise on Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != "" {
		return e.Code == t.Code
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is.
var (
	ErrNotFound         = &Error{Kind: KindNotFound, Message: "not found"}
	ErrUnavailable      = &Error{Kind: KindUnavailable, Message: "unavailable"}
	ErrInvalidState     = &Error{Kind: KindInvalidState, Message: "invalid state"}
	ErrForbidden        = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrConflict         = &Error{Kind: KindConflict, Message: "conflict"}
	ErrInvalid          = &Error{Kind: KindInvalid, Message: "invalid"}
	ErrInternal         = &Error{Kind: KindInternal, Message: "internal error"}
	ErrAlreadyCompleted = &Error{Kind: KindInvalidState, Code: CodeAlreadyCompleted, Message: "already completed"}
	ErrAlreadyCancelled = &Error{Kind: KindInvalidState, Code: CodeAlreadyCancelled, Message: "already cancelled"}
)

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return newf(KindNotFound, format, args...)
}

func Unavailable(format string, args ...any) *Error {
	return newf(KindUnavailable, format, args...)
}

func InvalidState(format string, args ...any) *Error {
	return newf(KindInvalidState, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return newf(KindForbidden, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return newf(KindConflict, format, args...)
}

func Invalid(format string, args ...any) *Error {
	return newf(KindInvalid, format, args...)
}

// AlreadyCompleted is the InvalidState refinement for a second completion.
func AlreadyCompleted(id string) *Error {
	return &Error{Kind: KindInvalidState, Code: CodeAlreadyCompleted, Message: fmt.Sprintf("reservation %s is already completed", id)}
}

// AlreadyCancelled is the InvalidState refinement for a second cancellation.
func AlreadyCancelled(id string) *Error {
	return &Error{Kind: KindInvalidState, Code: CodeAlreadyCancelled, Message: fmt.Sprintf("reservation %s is already cancelled", id)}
}

// Internal wraps an unexpected failure. The wrapped error is kept for logs only.
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// Wrap attaches a cause to a typed error without changing its kind.
func Wrap(e *Error, err error) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: e.Message, Err: err}
}

// KindOf reports the kind of err, KindInternal for anything untyped.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// As returns err as *Error, wrapping untyped errors as internal.
func As(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("internal error", err)
}

// HTTPStatus maps a kind to the status code the HTTP layer answers with.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindUnavailable:
		return http.StatusUnprocessableEntity
	case KindInvalidState, KindConflict:
		return http.StatusConflict
	case KindInvalid:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
