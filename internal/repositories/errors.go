package repositories

import (
	"errors"
	"fmt"
)

// ErrorKind enumerates repository error causes.
type ErrorKind string

const (
	// ErrorKindUnknown represents an unspecified failure.
	ErrorKindUnknown ErrorKind = "unknown"
	// ErrorKindNotFound indicates the record is missing.
	ErrorKindNotFound ErrorKind = "not_found"
	// ErrorKindConflict indicates a version mismatch or duplicate record.
	ErrorKindConflict ErrorKind = "conflict"
	// ErrorKindUnavailable indicates the backing store could not be reached.
	ErrorKindUnavailable ErrorKind = "unavailable"
)

// Error is the RepositoryError used by drivers that do not carry their own error type.
type Error struct {
	Op      string
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

// Unwrap exposes the underlying error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsNotFound implements RepositoryError.
func (e *Error) IsNotFound() bool { return e != nil && e.Kind == ErrorKindNotFound }

// IsConflict implements RepositoryError.
func (e *Error) IsConflict() bool { return e != nil && e.Kind == ErrorKindConflict }

// IsUnavailable implements RepositoryError.
func (e *Error) IsUnavailable() bool { return e != nil && e.Kind == ErrorKindUnavailable }

// NewError constructs a typed repository error.
func NewError(op string, kind ErrorKind, message string, err error) *Error {
	if kind == "" {
		kind = ErrorKindUnknown
	}
	return &Error{Op: op, Kind: kind, Message: message, Err: err}
}

// NewNotFound constructs a not-found repository error.
func NewNotFound(op, message string) *Error {
	return NewError(op, ErrorKindNotFound, message, nil)
}

// NewConflict constructs a conflict repository error.
func NewConflict(op, message string) *Error {
	return NewError(op, ErrorKindConflict, message, nil)
}

// NewUnavailable wraps a connectivity failure.
func NewUnavailable(op string, err error) *Error {
	return NewError(op, ErrorKindUnavailable, "store unavailable", err)
}

// IsNotFound reports whether err is a RepositoryError flagged as not found.
func IsNotFound(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

// IsConflict reports whether err is a RepositoryError flagged as conflict.
func IsConflict(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}

var _ RepositoryError = (*Error)(nil)
