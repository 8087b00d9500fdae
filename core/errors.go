package core

import "github.com/pkg/errors"

// FieldError describes a problem with a single input field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is returned when user input is rejected.
// Fields is nil for errors that do not relate to a specific field.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

// NewFieldError is a shortcut for a ValidationError on a single field.
func NewFieldError(field, msg string) error {
	return &ValidationError{Err: errors.New(msg), Fields: []FieldError{{Field: field, Error: msg}}}
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

// FieldMap returns {field: message}, or nil when there are no field errors.
func (err ValidationError) FieldMap() map[string]string {
	if len(err.Fields) == 0 {
		return nil
	}
	m := make(map[string]string, len(err.Fields))
	for _, f := range err.Fields {
		m[f.Field] = f.Error
	}
	return m
}

type shutdown struct {
	message string
}

// NewShutdownError returns an error that makes the API stop gracefully once handled.
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
