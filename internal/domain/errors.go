package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel error kinds. Handlers map these to HTTP statuses; services attach
// human-readable messages via E/Ef and never leak store internals.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrAlreadyUsed     = errors.New("already used")
	ErrExpired         = errors.New("expired")
	ErrInternal        = errors.New("internal error")
)

// Error carries a kind, a caller-facing message, and optionally the fields
// that caused the failure (forbidden patch fields, missing employee ids).
type Error struct {
	Kind    error
	Message string
	Fields  []string
}

func (e *Error) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Fields, ", "))
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Kind }

// E builds a kinded error with a message.
func E(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Ef builds a kinded error with a formatted message.
func Ef(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// EFields builds a kinded error naming the offending fields.
func EFields(kind error, message string, fields []string) *Error {
	return &Error{Kind: kind, Message: message, Fields: fields}
}

// ErrorFields returns the offending fields attached to err, if any.
func ErrorFields(err error) []string {
	var de *Error
	if errors.As(err, &de) {
		return de.Fields
	}
	return nil
}
