package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/imglabel/internal/domain"
	"github.com/phrazzld/imglabel/internal/platform/logger"
	"github.com/phrazzld/imglabel/internal/store"
)

// PostgresLabelStore implements the store.LabelStore interface
// using a PostgreSQL database as the storage backend.
type PostgresLabelStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresLabelStore creates a new PostgreSQL implementation of the LabelStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresLabelStore(db store.DBTX, logger *slog.Logger) *PostgresLabelStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresLabelStore{
		db:     db,
		logger: logger.With(slog.String("component", "label_store")),
	}
}

// Ensure PostgresLabelStore implements store.LabelStore interface
var _ store.LabelStore = (*PostgresLabelStore)(nil)

// Put implements store.LabelStore.Put. The conditional update keeps a record
// with a newer extracted_at in place.
func (s *PostgresLabelStore) Put(ctx context.Context, record *domain.LabelRecord) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := record.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	labels, err := json.Marshal(record.Labels)
	if err != nil {
		return fmt.Errorf("failed to encode labels: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO image_labels (image_id, labels, extracted_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (image_id) DO UPDATE
		SET labels = EXCLUDED.labels, extracted_at = EXCLUDED.extracted_at
		WHERE image_labels.extracted_at <= EXCLUDED.extracted_at`,
		record.ImageID, string(labels), record.ExtractedAt)
	if err != nil {
		log.Error("failed to put label record",
			slog.String("error", err.Error()),
			slog.String("image_id", record.ImageID))
		return store.NewStoreError("labels", "put", "upsert failed", MapError(err))
	}

	if n, _ := rowsAffected(res); n == 0 {
		log.Info("newer label record already stored",
			slog.String("image_id", record.ImageID),
			slog.Time("extracted_at", record.ExtractedAt))
	}
	return nil
}

// Get implements store.LabelStore.Get.
func (s *PostgresLabelStore) Get(ctx context.Context, imageID string) (*domain.LabelRecord, error) {
	var (
		record domain.LabelRecord
		labels []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT image_id, labels, extracted_at FROM image_labels WHERE image_id = $1`,
		imageID).Scan(&record.ImageID, &labels, &record.ExtractedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrLabelsNotFound
	}
	if err != nil {
		return nil, store.NewStoreError("labels", "get", "query failed", MapError(err))
	}

	if err := json.Unmarshal(labels, &record.Labels); err != nil {
		return nil, fmt.Errorf("failed to decode labels for %s: %w", imageID, err)
	}
	record.ExtractedAt = record.ExtractedAt.UTC()
	return &record, nil
}
