package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/imglabel/internal/domain"
	"github.com/phrazzld/imglabel/internal/store"
)

// PostgresThumbnailStore implements the store.ThumbnailStore interface
// using a PostgreSQL database as the storage backend.
type PostgresThumbnailStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresThumbnailStore creates a new PostgreSQL implementation of the ThumbnailStore interface.
func NewPostgresThumbnailStore(db store.DBTX, logger *slog.Logger) *PostgresThumbnailStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresThumbnailStore{
		db:     db,
		logger: logger.With(slog.String("component", "thumbnail_store")),
	}
}

var _ store.ThumbnailStore = (*PostgresThumbnailStore)(nil)

// Put implements store.ThumbnailStore.Put.
func (s *PostgresThumbnailStore) Put(ctx context.Context, asset *domain.ThumbnailAsset) error {
	if err := asset.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO image_thumbnails (image_id, variant, location, width, height, content_type)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (image_id, variant) DO UPDATE
		SET location = EXCLUDED.location, width = EXCLUDED.width,
			height = EXCLUDED.height, content_type = EXCLUDED.content_type`,
		asset.ImageID, asset.Variant, asset.Location, asset.Width, asset.Height, asset.ContentType)
	if err != nil {
		s.logger.Error("failed to put thumbnail",
			slog.String("error", err.Error()),
			slog.String("image_id", asset.ImageID),
			slog.String("variant", asset.Variant))
		return store.NewStoreError("thumbnail", "put", "upsert failed", MapError(err))
	}
	return nil
}

// Get implements store.ThumbnailStore.Get.
func (s *PostgresThumbnailStore) Get(ctx context.Context, imageID, variant string) (*domain.ThumbnailAsset, error) {
	var a domain.ThumbnailAsset
	err := s.db.QueryRowContext(ctx, `
		SELECT image_id, variant, location, width, height, content_type
		FROM image_thumbnails WHERE image_id = $1 AND variant = $2`,
		imageID, variant).Scan(&a.ImageID, &a.Variant, &a.Location, &a.Width, &a.Height, &a.ContentType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrThumbnailNotFound
	}
	if err != nil {
		return nil, store.NewStoreError("thumbnail", "get", "query failed", MapError(err))
	}
	return &a, nil
}
