package vectorstore

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrEmptyInput is returned when an index build receives no items.
	ErrEmptyInput = errors.New("no items provided for indexing")

	// ErrNoIndex is returned when searching a partition that has never
	// been built.
	ErrNoIndex = errors.New("no index built for partition")

	// ErrLockTimeout is returned when the partition writer lock cannot be
	// acquired within the configured wait.
	ErrLockTimeout = errors.New("partition write lock not acquired in time")

	// ErrDimensionMismatch is returned when embedded vectors disagree on
	// dimension within one build.
	ErrDimensionMismatch = errors.New("inconsistent vector dimensions")

	// ErrBlobNotFound is returned by blob backends for missing keys.
	ErrBlobNotFound = errors.New("blob not found")
)

// StoreError wraps errors with operation context.
type StoreError struct {
	Op  string // Operation name
	Err error  // Underlying error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("vectorstore: %v", e.Err)
	}
	return fmt.Sprintf("vectorstore: %s: %v", e.Op, e.Err)
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
