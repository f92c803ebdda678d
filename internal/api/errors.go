package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/phrazzld/imglabel/internal/domain"
	"github.com/phrazzld/imglabel/internal/service"
	"github.com/phrazzld/imglabel/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case store.IsNotFoundError(err):
		return http.StatusNotFound

	case errors.Is(err, service.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType

	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge

	case errors.Is(err, service.ErrEmptyUpload),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidImageID),
		errors.Is(err, domain.ErrInvalidVariant):
		return http.StatusBadRequest

	case errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, store.ErrLabelsNotFound):
		return "Labels not found"
	case errors.Is(err, store.ErrThumbnailNotFound):
		return "Thumbnail not found"
	case store.IsNotFoundError(err):
		return "Not found"
	case errors.Is(err, service.ErrUnsupportedMediaType):
		return "Unsupported image type"
	case errors.As(err, &tooLarge):
		return fmt.Sprintf("Image exceeds %d bytes", tooLarge.Limit)
	case errors.Is(err, service.ErrEmptyUpload):
		return "Image body is empty"
	case errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidImageID),
		errors.Is(err, domain.ErrInvalidVariant):
		return "Invalid request"
	case errors.Is(err, store.ErrUnavailable):
		return "Storage temporarily unavailable"
	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError removes sensitive details from validation errors
// and returns a user-friendly message.
func SanitizeValidationError(err error) string {
	errMsg := err.Error()

	// Example format: "Key: 'thumbnailParams.Variant' Error:Field validation for 'Variant' failed on the 'max' tag"
	if strings.Contains(errMsg, "Field validation") {
		parts := strings.Split(errMsg, "Error:")
		if len(parts) >= 2 {
			fieldParts := strings.Split(parts[1], "'")
			if len(fieldParts) >= 3 {
				field := fieldParts[1]
				var tag string
				if len(fieldParts) >= 5 {
					tag = fieldParts[3]
				}
				if tag != "" {
					return fmt.Sprintf("Invalid %s: %s", field, getValidationTagMessage(tag))
				}
				return fmt.Sprintf("Invalid %s", field)
			}
		}
	}

	return "Validation error"
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "max":
		return "too long"
	case "printascii", "excludesall":
		return "invalid characters"
	default:
		return "validation failed"
	}
}
