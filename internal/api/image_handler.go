package api

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/phrazzld/imglabel/internal/api/shared"
	"github.com/phrazzld/imglabel/internal/platform/logger"
	"github.com/phrazzld/imglabel/internal/service"
)

// DefaultMaxUploadBytes bounds an upload body when no limit is configured.
const DefaultMaxUploadBytes int64 = 10 << 20

// ImageHandler serves uploads and label and thumbnail queries.
type ImageHandler struct {
	images         service.ImageService
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewImageHandler creates a new ImageHandler. A non-positive maxUploadBytes
// selects DefaultMaxUploadBytes.
func NewImageHandler(images service.ImageService, maxUploadBytes int64, logger *slog.Logger) *ImageHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for ImageHandler")
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &ImageHandler{
		images:         images,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With(slog.String("component", "image_handler")),
	}
}

// RegisterRoutes mounts the image routes on r. uploadMiddleware wraps only
// the upload route.
func (h *ImageHandler) RegisterRoutes(r chi.Router, uploadMiddleware ...func(http.Handler) http.Handler) {
	r.Route("/images", func(r chi.Router) {
		r.With(uploadMiddleware...).Post("/", h.Upload)
		r.Get("/{imageID}/labels", h.GetLabels)
		r.Get("/{imageID}/thumbnails/{variant}", h.GetThumbnail)
		r.Get("/{imageID}/thumbnails/{variant}/content", h.GetThumbnailContent)
	})
}

// Upload handles POST /images. The body is the raw image.
func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxUploadBytes))
	if err != nil {
		status := MapErrorToStatusCode(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadRequest
		}
		shared.RespondWithErrorAndLog(w, r, status, GetSafeErrorMessage(err), err)
		return
	}

	res, err := h.images.Upload(r.Context(), data)
	if err != nil {
		statusCode := MapErrorToStatusCode(err)
		safeMessage := GetSafeErrorMessage(err)
		if statusCode == http.StatusInternalServerError {
			safeMessage = "Failed to store image"
		}
		shared.RespondWithErrorAndLog(w, r, statusCode, safeMessage, err)
		return
	}

	log.Debug("upload accepted",
		slog.String("object_key", res.ObjectKey),
		slog.String("image_id", res.ImageID))
	shared.RespondWithJSON(w, r, http.StatusAccepted, uploadToResponse(res))
}

// GetLabels handles GET /images/{imageID}/labels.
func (h *ImageHandler) GetLabels(w http.ResponseWriter, r *http.Request) {
	params := imagePathParams{ImageID: chi.URLParam(r, "imageID")}
	if err := shared.ValidateRequest(&params); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	record, err := h.images.GetLabels(r.Context(), params.ImageID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, labelsToResponse(record))
}

// GetThumbnail handles GET /images/{imageID}/thumbnails/{variant}.
func (h *ImageHandler) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	params, ok := h.thumbnailParams(w, r)
	if !ok {
		return
	}

	asset, err := h.images.GetThumbnail(r.Context(), params.ImageID, params.Variant)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, thumbnailToResponse(asset))
}

// GetThumbnailContent handles GET /images/{imageID}/thumbnails/{variant}/content.
func (h *ImageHandler) GetThumbnailContent(w http.ResponseWriter, r *http.Request) {
	params, ok := h.thumbnailParams(w, r)
	if !ok {
		return
	}

	content, err := h.images.GetThumbnailContent(r.Context(), params.ImageID, params.Variant)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	w.Header().Set("Content-Type", content.Asset.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(content.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(content.Data); err != nil {
		logger.FromContextOrDefault(r.Context(), h.logger).Warn("failed to write thumbnail",
			slog.String("error", err.Error()))
	}
}

func (h *ImageHandler) thumbnailParams(w http.ResponseWriter, r *http.Request) (thumbnailPathParams, bool) {
	params := thumbnailPathParams{
		ImageID: chi.URLParam(r, "imageID"),
		Variant: chi.URLParam(r, "variant"),
	}
	if err := shared.ValidateRequest(&params); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return params, false
	}
	return params, true
}
