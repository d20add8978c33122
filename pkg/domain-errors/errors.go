// Package domainerrors provides coded errors for the service layer.
//
// Stores and infrastructure return sentinel errors (pkg/platform/sentinel);
// services translate those into coded errors that carry a stable Code plus a
// human-readable message. Callers branch on HasCode, never on message text.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies the class of failure independent of wording.
type Code string

const (
	// CodeNotFound: the requested business key, current version, or as-of
	// version does not exist in the given scope.
	CodeNotFound Code = "not_found"
	// CodeConflict: an optimistic concurrency check lost to another writer.
	// Callers may retry with fresh data.
	CodeConflict Code = "conflict"
	// CodeValidation: a policy validator rejected the command. Never retried
	// automatically. The Field on the error names the offending field.
	CodeValidation Code = "validation"
	// CodeStalePolicy: a resolved policy was superseded between resolution
	// and use. Always surfaced, never silently ignored.
	CodeStalePolicy Code = "stale_policy"
	// CodeInvariantViolation: a domain state machine refused a transition
	// (e.g. refunding a payment that never succeeded).
	CodeInvariantViolation Code = "invariant_violation"
	// CodeInvalidInput: malformed identifiers or arguments at a trust boundary.
	CodeInvalidInput Code = "invalid_input"
	// CodeTimeout: the operation was abandoned at a transaction boundary.
	CodeTimeout Code = "timeout"
	// CodeInternal: storage or infrastructure failure unrelated to business
	// logic. Fatal for the current operation.
	CodeInternal Code = "internal"
)

// Error is the canonical service-layer error value.
type Error struct {
	Code    Code
	Message string
	// Field names the offending command field for validation errors so the
	// caller can render an actionable message.
	Field string
	Err   error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Field, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewValidation constructs a validation error naming the offending field.
func NewValidation(field, message string) *Error {
	return &Error{Code: CodeValidation, Field: field, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf returns the code of the outermost coded error, or CodeInternal when
// the chain carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// FieldOf returns the offending field of a validation error, if any.
func FieldOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Field
	}
	return ""
}
