// Package apperr defines the typed business-rule failures surfaced by the
// order and coupon domains. Every failure carries a stable machine-readable
// code and a human message; transports map the Kind to their own status codes.
package apperr

import (
	"fmt"
	"maps"
)

// Kind classifies a failure.
type Kind int

const (
	// KindNotFound means a referenced entity does not exist (or is not visible
	// to the caller).
	KindNotFound Kind = iota + 1
	// KindPreconditionFailed means the request is well-formed but a business
	// rule rejects it in the current state.
	KindPreconditionFailed
	// KindValidationFailed means the input was rejected before any reads.
	KindValidationFailed
	// KindConflict means a concurrent writer won a race.
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindPreconditionFailed:
		return "precondition_failed"
	case KindValidationFailed:
		return "validation_failed"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Error is a typed domain failure. Two errors match under errors.Is when
// their codes are equal, so a sentinel can be compared against a copy that
// carries a more specific message or details.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithMessage returns a copy of e with a new message.
func (e *Error) WithMessage(format string, args ...any) *Error {
	c := e.clone()
	c.Message = fmt.Sprintf(format, args...)
	return c
}

// WithDetail returns a copy of e with an extra detail entry.
func (e *Error) WithDetail(key, value string) *Error {
	c := e.clone()
	if c.Details == nil {
		c.Details = make(map[string]string, 1)
	}
	c.Details[key] = value
	return c
}

func (e *Error) clone() *Error {
	c := *e
	c.Details = maps.Clone(e.Details)
	return &c
}

// NotFound creates a KindNotFound error.
func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

// PreconditionFailed creates a KindPreconditionFailed error.
func PreconditionFailed(code, message string) *Error {
	return &Error{Kind: KindPreconditionFailed, Code: code, Message: message}
}

// ValidationFailed creates a KindValidationFailed error.
func ValidationFailed(code, message string) *Error {
	return &Error{Kind: KindValidationFailed, Code: code, Message: message}
}

// Conflict creates a KindConflict error.
func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}
