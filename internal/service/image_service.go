package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/phrazzld/imglabel/internal/domain"
	"github.com/phrazzld/imglabel/internal/notify"
	"github.com/phrazzld/imglabel/internal/platform/logger"
	"github.com/phrazzld/imglabel/internal/platform/metrics"
	"github.com/phrazzld/imglabel/internal/store"
)

// UploadPrefix is the object key prefix of every upload.
const UploadPrefix = "uploads/"

// extensions maps sniffed content types to the key suffix of the stored object.
var extensions = map[string]string{
	"image/jpeg": ".jpeg",
	"image/png":  ".png",
}

// UploadResult identifies a stored upload.
type UploadResult struct {
	ObjectKey   string
	ImageID     string
	ContentType string
}

// ThumbnailContent is a thumbnail with its bytes.
type ThumbnailContent struct {
	Asset *domain.ThumbnailAsset
	Data  []byte
}

// ImageService is the query and ingress front door of the pipeline.
type ImageService interface {
	// Upload stores an image under a fresh key and returns immediately.
	// Labels become available once a worker has processed it.
	Upload(ctx context.Context, data []byte) (*UploadResult, error)

	// GetLabels returns the label record of an image.
	GetLabels(ctx context.Context, imageID string) (*domain.LabelRecord, error)

	// GetThumbnail returns the metadata of one thumbnail variant.
	GetThumbnail(ctx context.Context, imageID, variant string) (*domain.ThumbnailAsset, error)

	// GetThumbnailContent returns a thumbnail variant with its bytes.
	GetThumbnailContent(ctx context.Context, imageID, variant string) (*ThumbnailContent, error)
}

// ImageServiceDeps are the collaborators of the image service.
type ImageServiceDeps struct {
	// Images receives uploads. Creation notifications are its concern.
	Images store.ObjectStore
	// ThumbnailObjects holds rendered thumbnails.
	ThumbnailObjects store.ObjectStore
	Labels           store.LabelStore
	Thumbnails       store.ThumbnailStore
	// Suffixes are the object key suffixes the workers process. Uploads that
	// would be stored under any other suffix are rejected. Empty accepts all.
	Suffixes notify.SuffixFilter
	// Metrics is optional.
	Metrics *metrics.Metrics
}

type imageServiceImpl struct {
	deps   ImageServiceDeps
	logger *slog.Logger
}

// NewImageService creates a new ImageService.
// It returns an error if any of the required dependencies are nil.
func NewImageService(deps ImageServiceDeps, logger *slog.Logger) (ImageService, error) {
	if deps.Images == nil || deps.ThumbnailObjects == nil {
		return nil, fmt.Errorf("%w: object stores cannot be nil", domain.ErrValidation)
	}
	if deps.Labels == nil || deps.Thumbnails == nil {
		return nil, fmt.Errorf("%w: label and thumbnail stores cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &imageServiceImpl{
		deps:   deps,
		logger: logger.With(slog.String("component", "image_service")),
	}, nil
}

// Upload implements ImageService.Upload.
func (s *imageServiceImpl) Upload(ctx context.Context, data []byte) (*UploadResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len(data) == 0 {
		return nil, ErrEmptyUpload
	}
	contentType := http.DetectContentType(data)
	ext, ok := extensions[contentType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMediaType, contentType)
	}

	if len(s.deps.Suffixes) > 0 && !s.deps.Suffixes.Accepts(ext) {
		return nil, fmt.Errorf("%w: %s images are not processed", ErrUnsupportedMediaType, contentType)
	}

	imageID := uuid.NewString()
	key := UploadPrefix + imageID + ext
	if err := s.deps.Images.Put(ctx, key, data, contentType); err != nil {
		log.Error("failed to store upload",
			slog.String("object_key", key),
			slog.String("error", err.Error()))
		return nil, NewImageServiceError("upload", "failed to store image", err)
	}

	s.deps.Metrics.ObserveUpload()
	log.Info("image uploaded",
		slog.String("object_key", key),
		slog.String("image_id", imageID),
		slog.Int("size", len(data)))

	return &UploadResult{ObjectKey: key, ImageID: imageID, ContentType: contentType}, nil
}

// GetLabels implements ImageService.GetLabels.
func (s *imageServiceImpl) GetLabels(ctx context.Context, imageID string) (*domain.LabelRecord, error) {
	record, err := s.deps.Labels.Get(ctx, imageID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, err
		}
		return nil, NewImageServiceError("get_labels", "failed to read labels", err)
	}
	return record, nil
}

// GetThumbnail implements ImageService.GetThumbnail.
func (s *imageServiceImpl) GetThumbnail(ctx context.Context, imageID, variant string) (*domain.ThumbnailAsset, error) {
	asset, err := s.deps.Thumbnails.Get(ctx, imageID, variant)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, err
		}
		return nil, NewImageServiceError("get_thumbnail", "failed to read thumbnail", err)
	}
	return asset, nil
}

// GetThumbnailContent implements ImageService.GetThumbnailContent.
func (s *imageServiceImpl) GetThumbnailContent(ctx context.Context, imageID, variant string) (*ThumbnailContent, error) {
	asset, err := s.GetThumbnail(ctx, imageID, variant)
	if err != nil {
		return nil, err
	}

	data, err := s.deps.ThumbnailObjects.Get(ctx, asset.Location)
	if err != nil {
		if errors.Is(err, store.ErrObjectNotFound) {
			// Metadata without bytes reads as a missing thumbnail.
			logger.FromContextOrDefault(ctx, s.logger).Warn("thumbnail metadata without object",
				slog.String("location", asset.Location))
			return nil, store.ErrThumbnailNotFound
		}
		return nil, NewImageServiceError("get_thumbnail_content", "failed to read thumbnail bytes", err)
	}
	return &ThumbnailContent{Asset: asset, Data: data}, nil
}
