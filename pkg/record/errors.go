package record

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrStoreClosed is returned when trying to use a closed store.
	ErrStoreClosed = errors.New("store is closed")

	// ErrConflict is returned when a uniqueness constraint is violated.
	ErrConflict = errors.New("record already exists")
)

// StoreError wraps errors with operation context.
type StoreError struct {
	Op  string // Operation name
	Err error  // Underlying error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("record: %v", e.Err)
	}
	return fmt.Sprintf("record: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target.
func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// wrapError wraps an error with operation context.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}
