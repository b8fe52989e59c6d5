package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies a failure independently of the transport.
type Kind string

const (
	KindUnauthenticated  Kind = "UNAUTHENTICATED"
	KindForbidden        Kind = "FORBIDDEN"
	KindNotFound         Kind = "NOT_FOUND"
	KindValidationFailed Kind = "VALIDATION_FAILED"
	KindCreationFailed   Kind = "CREATION_FAILED"
	KindUpdateFailed     Kind = "UPDATE_FAILED"
	KindConflict         Kind = "CONFLICT"
	KindInternal         Kind = "INTERNAL_ERROR"
)

// Error is the error type returned by the workflow services.
type Error struct {
	Kind    Kind
	Message string
	Details string
	err     error
}

func (e *Error) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.err }

// Is matches on Kind so sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// Sentinels for errors.Is checks; Message is empty so any error of the kind matches.
var (
	ErrUnauthenticated  = &Error{Kind: KindUnauthenticated}
	ErrForbidden        = &Error{Kind: KindForbidden}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrValidationFailed = &Error{Kind: KindValidationFailed}
	ErrCreationFailed   = &Error{Kind: KindCreationFailed}
	ErrUpdateFailed     = &Error{Kind: KindUpdateFailed}
	ErrConflict         = &Error{Kind: KindConflict}
)

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Unauthenticated(message string) *Error {
	if message == "" {
		message = "Authentication required"
	}
	return New(KindUnauthenticated, message)
}

func Forbidden(message string) *Error {
	if message == "" {
		message = "Access denied"
	}
	return New(KindForbidden, message)
}

func NotFound(message string) *Error {
	if message == "" {
		message = "Resource not found"
	}
	return New(KindNotFound, message)
}

func Validation(message string) *Error {
	return New(KindValidationFailed, message)
}

func Conflict(message string) *Error {
	return New(KindConflict, message)
}

// CreationFailed wraps a data-layer or object-store failure of a create operation.
func CreationFailed(message string, err error) *Error {
	return wrap(KindCreationFailed, message, err)
}

// UpdateFailed wraps a data-layer or object-store failure of a mutating operation.
func UpdateFailed(message string, err error) *Error {
	return wrap(KindUpdateFailed, message, err)
}

func Internal(message string, err error) *Error {
	return wrap(KindInternal, message, err)
}

func wrap(kind Kind, message string, err error) *Error {
	e := &Error{Kind: kind, Message: message, err: err}
	if err != nil {
		e.Details = err.Error()
	}
	return e
}

// Passthrough keeps an *Error produced deeper in the call chain and wraps
// anything else with the given constructor.
func Passthrough(err error, fallback func(string, error) *Error, message string) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return fallback(message, err)
}

// Errorf builds a ValidationFailed error with a formatted message.
func Errorf(format string, args ...any) *Error {
	return Validation(fmt.Sprintf(format, args...))
}
