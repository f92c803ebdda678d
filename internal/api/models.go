package api

import (
	"time"

	"github.com/phrazzld/imglabel/internal/domain"
	"github.com/phrazzld/imglabel/internal/service"
)

// UploadResponse is returned once an upload is stored. Labels appear later.
type UploadResponse struct {
	ObjectKey string `json:"object_key"`
	ImageID   string `json:"image_id"`
}

// LabelResponse is a single detected label.
type LabelResponse struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// LabelsResponse is the label record of one image.
type LabelsResponse struct {
	ImageID     string          `json:"image_id"`
	Labels      []LabelResponse `json:"labels"`
	ExtractedAt time.Time       `json:"extracted_at"`
}

// ThumbnailResponse describes one stored thumbnail variant.
type ThumbnailResponse struct {
	ImageID     string `json:"image_id"`
	Variant     string `json:"variant"`
	Location    string `json:"location"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ContentType string `json:"content_type"`
}

// imagePathParams are the path parameters of the label routes.
type imagePathParams struct {
	ImageID string `validate:"required,max=256,printascii"`
}

// thumbnailPathParams are the path parameters of the thumbnail routes.
type thumbnailPathParams struct {
	ImageID string `validate:"required,max=256,printascii"`
	Variant string `validate:"required,max=64,printascii"`
}

func uploadToResponse(res *service.UploadResult) UploadResponse {
	return UploadResponse{ObjectKey: res.ObjectKey, ImageID: res.ImageID}
}

func labelsToResponse(rec *domain.LabelRecord) LabelsResponse {
	labels := make([]LabelResponse, 0, len(rec.Labels))
	for _, l := range rec.Labels {
		labels = append(labels, LabelResponse{Name: l.Name, Confidence: l.Confidence})
	}
	return LabelsResponse{
		ImageID:     rec.ImageID,
		Labels:      labels,
		ExtractedAt: rec.ExtractedAt,
	}
}

func thumbnailToResponse(a *domain.ThumbnailAsset) ThumbnailResponse {
	return ThumbnailResponse{
		ImageID:     a.ImageID,
		Variant:     a.Variant,
		Location:    a.Location,
		Width:       a.Width,
		Height:      a.Height,
		ContentType: a.ContentType,
	}
}
