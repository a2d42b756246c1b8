package domain

import (
	"errors"
	"fmt"
)

// ValidationError reports caller supplied data that fails a precondition.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError for field.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a task id that is not on the board.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("task %s not found", e.ID)
}

// ConflictError indicates that the caller's expected version is stale.
type ConflictError struct {
	ID       string
	Expected int64
	Actual   int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("task %s: version conflict (expected %d, stored %d)", e.ID, e.Expected, e.Actual)
}

// InvariantViolationError means the re-indexing produced an inconsistent
// column. The mutation that triggered it is never committed.
type InvariantViolationError struct {
	Status Status
	Detail string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("order invariant violated in column %s: %s", e.Status, e.Detail)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

func IsInvariantViolation(err error) bool {
	var target *InvariantViolationError
	return errors.As(err, &target)
}
