package service

import (
	"errors"
	"fmt"
)

// Common service errors. Callers check them with errors.Is; the API layer maps
// them to HTTP status codes.
var (
	// ErrUnsupportedMediaType indicates an upload whose content is not a
	// supported image format.
	// API layer should map this to HTTP 415 Unsupported Media Type.
	ErrUnsupportedMediaType = errors.New("unsupported media type")

	// ErrEmptyUpload indicates an upload without content.
	// API layer should map this to HTTP 400 Bad Request.
	ErrEmptyUpload = errors.New("upload is empty")
)

// ImageServiceError wraps unexpected failures of the image service with context.
type ImageServiceError struct {
	// Operation is the operation that failed (e.g., "upload", "get_labels")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ImageServiceError.
func (e *ImageServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("image service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("image service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ImageServiceError) Unwrap() error {
	return e.Err
}

// NewImageServiceError creates a new ImageServiceError.
func NewImageServiceError(operation, message string, err error) *ImageServiceError {
	return &ImageServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
