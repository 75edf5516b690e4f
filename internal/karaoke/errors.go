package karaoke

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a stable, machine-readable failure category. Callers must match on
// the kind, never on the message text.
type Kind string

const (
	KindUnauthenticated   Kind = "unauthenticated"
	KindPermissionDenied  Kind = "permission-denied"
	KindInvalidArgument   Kind = "invalid-argument"
	KindNotFound          Kind = "not-found"
	KindResourceExhausted Kind = "resource-exhausted"
	KindInternal          Kind = "internal"
)

func (k Kind) HTTPStatus() int {
	switch k {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindResourceExhausted:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error carries a kind plus a human-readable message. Storage failures are
// wrapped as internal and keep their cause for logging.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func unauthenticated(msg string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: msg}
}

func denied(msg string) *Error {
	return &Error{Kind: KindPermissionDenied, Message: msg}
}

func invalidArgument(msg string) *Error {
	return &Error{Kind: KindInvalidArgument, Message: msg}
}

func notFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func exhausted(msg string) *Error {
	return &Error{Kind: KindResourceExhausted, Message: msg}
}

func internal(msg string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: msg, cause: cause}
}

// KindOf extracts the kind from any error. Unknown errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the user-visible message for any error. Causes of
// internal errors are never exposed to callers.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
