package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	// This is a generic version of the entity-specific not found errors.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrTransactionFailed is returned when a database transaction fails
	// to commit or when an operation within a transaction fails.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrUnavailable is returned when the backing store could not be reached
	// or refused the request for a reason that may clear up on retry.
	ErrUnavailable = errors.New("store unavailable")

	// Entity-specific "not found" errors

	// ErrLabelsNotFound indicates that no label record exists for the image.
	ErrLabelsNotFound = fmt.Errorf("%w: labels", ErrNotFound)

	// ErrThumbnailNotFound indicates that no thumbnail exists for the image and variant.
	ErrThumbnailNotFound = fmt.Errorf("%w: thumbnail", ErrNotFound)

	// ErrObjectNotFound indicates that the object store holds nothing under the
	// key, or that the object can never be read. Callers treat it as permanent.
	ErrObjectNotFound = fmt.Errorf("%w: object", ErrNotFound)

	// ErrDeadLetterNotFound indicates that the dead-letter entry does not exist.
	ErrDeadLetterNotFound = fmt.Errorf("%w: dead letter", ErrNotFound)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// StoreError is a custom error type for store-specific errors with additional context.
type StoreError struct {
	Entity    string // The entity type (e.g., "labels", "thumbnail")
	Operation string // The operation that failed (e.g., "put", "get")
	Message   string
	Err       error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation on %s failed: %s: %v", e.Operation, e.Entity, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given entity, operation, message, and wrapped error.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
