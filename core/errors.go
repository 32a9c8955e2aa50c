package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError reports malformed or constraint-violating input.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

func (err ValidationError) Unwrap() error { return err.Err }

// NotFoundError reports that a referenced entity does not exist.
type NotFoundError struct {
	Message string
}

func NewNotFoundError(msg string) error {
	return &NotFoundError{Message: msg}
}

func (err NotFoundError) Error() string {
	if err.Message == "" {
		return "not found"
	}
	return err.Message
}

// ForbiddenError reports a valid identity without rights on the targeted resource.
type ForbiddenError struct {
	Reason string
}

func NewForbiddenError(reason string) error {
	return &ForbiddenError{Reason: reason}
}

func (err ForbiddenError) Error() string {
	if err.Reason == "" {
		return "permission denied"
	}
	return err.Reason
}

// ConflictError reports a duplicate on a unique field.
type ConflictError struct {
	Field string
	Err   error
}

func NewConflictError(field string, err error) error {
	return &ConflictError{Field: field, Err: err}
}

func (err ConflictError) Error() string {
	if err.Err == nil {
		return err.Field + " already exists"
	}
	return err.Err.Error()
}

func (err ConflictError) Unwrap() error { return err.Err }

// shutdown is returned when the app is left in a state it cannot recover from: the server stops gracefully.
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

// IsNotFound reports whether err (or its cause) is a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
