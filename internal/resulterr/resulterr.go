// Package resulterr tags errors with one of the five kinds from the
// error-handling design: Validation, Authorization, NotFound, Conflict,
// Transient. Callers at a command or API boundary inspect Kind to decide
// how to log and how to render a user-facing message, without needing a
// type switch over every concrete sentinel error in the domain packages.
package resulterr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for logging level and user-facing rendering.
type Kind int

const (
	// KindUnknown is the zero value; treated the same as Transient.
	KindUnknown Kind = iota
	KindValidation
	KindAuthorization
	KindNotFound
	KindConflict
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind and a verbatim user-facing
// message, per spec.md §7 ("the caller reports the first violation's
// message verbatim").
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a kinded error whose message is both the log text and the
// user-facing text.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a kinded error around cause, with a distinct user-facing
// message (cause's text is not shown to the end user).
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Validationf builds a KindValidation error with a formatted message.
func Validationf(format string, args ...any) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

// Conflictf builds a KindConflict error with a formatted message.
func Conflictf(format string, args ...any) *Error {
	return New(KindConflict, fmt.Sprintf(format, args...))
}

// NotFoundf builds a KindNotFound error with a formatted message.
func NotFoundf(format string, args ...any) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

// Authorizationf builds a KindAuthorization error with a formatted message.
func Authorizationf(format string, args ...any) *Error {
	return New(KindAuthorization, fmt.Sprintf(format, args...))
}

// KindOf extracts the Kind from err, defaulting to KindTransient for any
// error that was not produced through this package — per spec.md §7,
// unrecognised failures (DB connectivity, network) are treated as
// transient and get a generic retry message.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransient
}

// UserMessage renders the user-facing text for err, falling back to a
// generic retry message for unkinded errors so raw internal error text
// never leaks to end users.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Something went wrong. Please try again."
}
