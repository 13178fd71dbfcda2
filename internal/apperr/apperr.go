// Package apperr defines the error taxonomy returned by the core services.
// Handlers translate these into HTTP statuses; everything else is Internal.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound means a referenced order, step, operation or defect is absent
	ErrNotFound = errors.New("not found")

	// ErrForbidden means a role or lock-ownership rule was violated
	ErrForbidden = errors.New("forbidden")

	// ErrAlreadyStarted means the operation already has a start time
	ErrAlreadyStarted = errors.New("operation already started")

	// ErrAlreadyCompleted means the operation already has an end time
	ErrAlreadyCompleted = errors.New("operation already completed")

	// ErrValidation means the caller sent missing or malformed input
	ErrValidation = errors.New("validation error")
)

// ConflictError is returned when the edit lock is held by another user. It
// carries the current owner so callers can report who to ask.
type ConflictError struct {
	OwnerID   uint
	OwnerName string
	LockedAt  time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("locked by %s since %s", e.OwnerName, e.LockedAt.Format(time.RFC3339))
}

// IsConflict reports whether err is a lock conflict
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// Validationf wraps ErrValidation with a caller-facing message
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrValidation}, args...)...)
}

// NotFoundf wraps ErrNotFound with the missing entity
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrNotFound}, args...)...)
}

// Forbiddenf wraps ErrForbidden with the violated rule
func Forbiddenf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrForbidden}, args...)...)
}
