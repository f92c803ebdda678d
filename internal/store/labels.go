package store

import (
	"context"

	"github.com/phrazzld/imglabel/internal/domain"
)

// LabelStore persists label records keyed by image ID.
// Version: 1.0
type LabelStore interface {
	// Put writes the record, replacing any record stored for the same image.
	// A stored record with a strictly newer ExtractedAt is left untouched, so
	// a late redelivery cannot roll results back.
	// Returns ErrInvalidEntity if the record fails validation.
	Put(ctx context.Context, record *domain.LabelRecord) error

	// Get retrieves the record for an image.
	// Returns ErrLabelsNotFound if no record exists.
	Get(ctx context.Context, imageID string) (*domain.LabelRecord, error)
}
