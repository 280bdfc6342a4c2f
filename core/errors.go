package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is a client error. Without Fields it carries a plain message
// (e.g. duplicate enrollment).
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

type notFound struct {
	message string
}

// NewNotFoundError returns an error reported to clients as 404 with msg.
func NewNotFoundError(msg string) error {
	return &notFound{message: msg}
}

func (e notFound) Error() string { return e.message }

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*notFound)
	return ok
}

type forbidden struct {
	message string
}

// NewForbiddenError returns an error reported to clients as 403 with msg.
func NewForbiddenError(msg string) error {
	return &forbidden{message: msg}
}

func (e forbidden) Error() string { return e.message }

func IsForbidden(err error) bool {
	_, ok := errors.Cause(err).(*forbidden)
	return ok
}

type unauthorized struct {
	message string
}

// NewUnauthorizedError returns an error reported to clients as 401 with msg.
func NewUnauthorizedError(msg string) error {
	return &unauthorized{message: msg}
}

func (e unauthorized) Error() string { return e.message }

func IsUnauthorized(err error) bool {
	_, ok := errors.Cause(err).(*unauthorized)
	return ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
