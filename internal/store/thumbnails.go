package store

import (
	"context"

	"github.com/phrazzld/imglabel/internal/domain"
)

// ThumbnailStore persists thumbnail metadata keyed by (image ID, variant).
// The bytes themselves live in an ObjectStore under ThumbnailAsset.Location.
// Version: 1.0
type ThumbnailStore interface {
	// Put writes the asset, replacing any asset stored for the same key.
	// Returns ErrInvalidEntity if the asset fails validation.
	Put(ctx context.Context, asset *domain.ThumbnailAsset) error

	// Get retrieves the asset for an image and variant.
	// Returns ErrThumbnailNotFound if no asset exists.
	Get(ctx context.Context, imageID, variant string) (*domain.ThumbnailAsset, error)
}
