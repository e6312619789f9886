package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidRetryPolicy = errors.New("invalid retry policy")
	ErrUnknownTransform   = errors.New("unknown transform")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrClosed             = errors.New("store is closed")
	ErrNotDeadLettered    = errors.New("execution is not dead-lettered")
)

// ExecutionError wraps an executor failure with its classified error class.
// The retry manager re-raises it once retries are exhausted.
type ExecutionError struct {
	Class       ErrorClass
	NodeID      string
	ExecutionID string
	Attempts    int
	Err         error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution %s node %s failed after %d attempt(s) [%s]: %v",
		e.ExecutionID, e.NodeID, e.Attempts, e.Class, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func IsExecutionError(err error) bool {
	var execErr *ExecutionError
	return errors.As(err, &execErr)
}

type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func NewStorageError(op, key string, err error) *StorageError {
	return &StorageError{Op: op, Key: key, Err: err}
}

// FieldResolutionError is a single mapping field failure; collected per field
// and reported without aborting sibling fields.
type FieldResolutionError struct {
	Field   string
	Message string
}

func (e *FieldResolutionError) Error() string {
	return fmt.Sprintf("field %s: %s", e.Field, e.Message)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
