// Package apperror defines the error kinds the snippet core reports.
//
// Every failure a caller sees is one of three kinds, checked with errors.Is:
//
//	ErrNotFound        the referenced Snippet or Version does not exist
//	ErrInvalidArgument the request itself is malformed (e.g. blank keyword)
//	ErrStorage         the backing store failed (connection loss, write error)
//
// NotFound and InvalidArgument are ordinary outcomes. Storage faults are
// never retried here; the caller decides.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrStorage         = errors.New("storage fault")
)

type AppError struct {
	Err     error  // kind sentinel
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying driver error
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the kind and the cause, so errors.Is(err, ErrStorage)
// and errors.Is(err, sql.ErrConnDone) can both hold for the same error.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

func InvalidArgument(field, message string) *AppError {
	return &AppError{
		Err:     ErrInvalidArgument,
		Message: message,
		Field:   field,
	}
}

// Storage wraps a persistence failure that happened while performing op.
// The message names the operation only; driver text stays in Cause.
func Storage(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrStorage,
		Message: fmt.Sprintf("storage failure during %s", op),
		Cause:   cause,
	}
}

// Cause returns the underlying driver error of a storage fault, or err
// itself when there is none. Used for logging only.
func Cause(err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Cause != nil {
		return appErr.Cause
	}
	return err
}

// Classify returns err unchanged when it already carries a kind, and wraps
// it as a storage fault for op otherwise. nil stays nil.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return err
	}
	return Storage(op, err)
}
