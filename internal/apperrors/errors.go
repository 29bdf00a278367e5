package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation checks.
var ErrValidation = errors.New("validation error")

// ErrDuplicate indicates that an attempt was made to create a resource that already exists.
var ErrDuplicate = errors.New("resource already exists")

// ErrConflict indicates that a resource was modified concurrently and the
// caller's write was rejected to avoid double-applying it.
var ErrConflict = errors.New("resource was modified concurrently")

// ErrNotPayable indicates that a payment was attempted against a loan that is
// not in a payable state (only Active loans accept payments).
var ErrNotPayable = errors.New("loan is not payable")

// ErrInvalidTransition indicates a loan status change the state machine forbids.
var ErrInvalidTransition = errors.New("invalid loan status transition")

// AppError wraps a lower-level failure with a status code and a message.
// Repositories use it to surface persistence failures without leaking driver details.
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError.
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// FieldViolation describes a single invalid input field.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every violated constraint from a single validation
// pass so callers can surface all problems at once instead of one at a time.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = fmt.Sprintf("%s: %s", v.Field, v.Message)
	}
	return "validation error: " + strings.Join(parts, "; ")
}

// Is allows errors.Is(err, ErrValidation) to match a *ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Add appends a violation and returns the receiver for chaining.
func (e *ValidationError) Add(field, message string) *ValidationError {
	e.Violations = append(e.Violations, FieldViolation{Field: field, Message: message})
	return e
}

// HasViolations reports whether any constraint was violated.
func (e *ValidationError) HasViolations() bool {
	return len(e.Violations) > 0
}
