// Package apperr provides the typed error kinds shared by the loader, the
// pipeline and the external-service boundary. Callers branch on Kind rather
// than on message text; the CLI maps kinds to exit codes.
package apperr

import (
	"errors"
	"fmt"
)

// Kind represents the category of error.
type Kind int

const (
	// KindUnknown is the default error kind when none is specified.
	KindUnknown Kind = iota
	// KindValidation indicates input data that violates a documented contract
	// (missing required column, malformed key, invalid config value).
	KindValidation
	// KindNotFound indicates a required input (dataset file) does not exist.
	KindNotFound
	// KindNotConfigured indicates an external service is missing credentials
	// or settings and was never contacted.
	KindNotConfigured
	// KindUnavailable indicates an external service call failed at runtime
	// (timeout, transport error, retries exhausted).
	KindUnavailable
	// KindMalformed indicates an external service answered with a payload that
	// failed shape validation.
	KindMalformed
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindNotConfigured:
		return "not_configured"
	case KindUnavailable:
		return "unavailable"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Error is a domain error with a typed Kind.
type Error struct {
	Kind    Kind
	Message string
	Op      string // Operation that failed (optional)
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// ExitCode returns the process exit code the CLI uses for this kind.
func (e *Error) ExitCode() int {
	switch e.Kind {
	case KindValidation:
		return 65 // EX_DATAERR
	case KindNotFound:
		return 66 // EX_NOINPUT
	case KindNotConfigured:
		return 78 // EX_CONFIG
	case KindUnavailable, KindMalformed:
		return 69 // EX_UNAVAILABLE
	default:
		return 1
	}
}

// New creates a new domain error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a new domain error wrapping an existing error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithOp sets the operation and returns the same error.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// Validation creates a validation error.
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// NotFound creates a not found error.
func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

// NotConfigured creates a configuration error for an external service.
func NotConfigured(message string) *Error {
	return New(KindNotConfigured, message)
}

// Unavailable wraps a runtime failure of an external service.
func Unavailable(message string, err error) *Error {
	return Wrap(KindUnavailable, message, err)
}

// Malformed creates an error for a response that failed validation.
func Malformed(message string) *Error {
	return New(KindMalformed, message)
}

// GetKind extracts the error kind from the first *Error in err's chain.
// Returns KindUnknown if there is none.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is checks if err's chain holds an *Error with the given kind.
func Is(err error, kind Kind) bool {
	return GetKind(err) == kind
}
