package config

import (
	"errors"
	"fmt"
)

// Error is the fatal configuration error kind. Builders converge every
// construction failure into an Error, enriching the message with the name of
// the construct that failed at each boundary.
type Error struct {
	msg   string
	cause error
}

// Errorf creates an Error. The %w verb is supported for wrapping an inner
// error while preserving its message.
func Errorf(format string, args ...any) *Error {
	err := fmt.Errorf(format, args...)

	return &Error{msg: err.Error(), cause: errors.Unwrap(err)}
}

func (e *Error) Error() string { return e.msg }
func (e *Error) Unwrap() error { return e.cause }

// IsError reports whether err is, or wraps, a configuration Error.
func IsError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}
