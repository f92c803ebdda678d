package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/phrazzld/imglabel/internal/domain"
	"github.com/phrazzld/imglabel/internal/service"
	"github.com/phrazzld/imglabel/internal/store"
)

func TestMapErrorToStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"labels not found", store.ErrLabelsNotFound, http.StatusNotFound},
		{"wrapped thumbnail not found", fmt.Errorf("get: %w", store.ErrThumbnailNotFound), http.StatusNotFound},
		{"unsupported media", fmt.Errorf("%w: text/plain", service.ErrUnsupportedMediaType), http.StatusUnsupportedMediaType},
		{"too large", &http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge},
		{"empty upload", service.ErrEmptyUpload, http.StatusBadRequest},
		{"invalid entity", store.ErrInvalidEntity, http.StatusBadRequest},
		{"invalid image id", domain.ErrInvalidImageID, http.StatusBadRequest},
		{"domain validation", fmt.Errorf("%w: bad", domain.ErrValidation), http.StatusBadRequest},
		{"unavailable", store.NewStoreError("labels", "get", "down", store.ErrUnavailable), http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, MapErrorToStatusCode(tc.err))
		})
	}
}

func TestGetSafeErrorMessage(t *testing.T) {
	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(nil))
	assert.Equal(t, "Labels not found", GetSafeErrorMessage(store.ErrLabelsNotFound))
	assert.Equal(t, "Thumbnail not found", GetSafeErrorMessage(store.ErrThumbnailNotFound))
	assert.Equal(t, "Not found", GetSafeErrorMessage(store.ErrObjectNotFound))
	assert.Equal(t, "Image exceeds 1024 bytes", GetSafeErrorMessage(&http.MaxBytesError{Limit: 1024}))

	internal := service.NewImageServiceError("upload", "failed", errors.New("s3://secret-bucket refused"))
	msg := GetSafeErrorMessage(internal)
	assert.Equal(t, "An unexpected error occurred", msg)
	assert.NotContains(t, msg, "secret-bucket")
}

func TestSanitizeValidationError(t *testing.T) {
	err := validator.New().Struct(&thumbnailPathParams{ImageID: "img1"})
	assert.Equal(t, "Invalid Variant: required field", SanitizeValidationError(err))

	assert.Equal(t, "Validation error", SanitizeValidationError(errors.New("something else")))
}
