package core

import "github.com/pkg/errors"

// The engine reports failures in three shapes: package-level sentinels for
// domain rules (submission.ErrInvalidGrade and friends, compared via
// errors.Cause), ValidationError for request structs that fail field checks
// before reaching a service, and shutdown errors for integrity failures the
// API server must not survive.

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError carries the field-level failures of a request struct, e.g.
// a NewUser whose username is taken or a NewExtension missing its due date.
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

type shutdown struct {
	message string
}

// NewShutdownError returns an error that signals the server to initiate a
// graceful shutdown; reserved for states no request handler can recover from.
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
