// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidNotification is returned when a queued payload cannot be
	// decoded into a Notification. It is never retryable.
	ErrInvalidNotification = errors.New("invalid notification")

	// ErrInvalidImageID is returned when an image identifier is empty or
	// cannot be derived from an object key.
	ErrInvalidImageID = errors.New("invalid image ID")

	// ErrInvalidVariant is returned when a thumbnail variant name is empty.
	ErrInvalidVariant = errors.New("invalid thumbnail variant")
)
