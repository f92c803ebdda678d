package domain

import (
	"fmt"
	"strings"
)

// ThumbnailAsset describes one derived image. It is keyed by (ImageID, Variant)
// and writes overwrite it.
type ThumbnailAsset struct {
	ImageID     string `json:"image_id"`
	Variant     string `json:"variant"`
	Location    string `json:"location"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ContentType string `json:"content_type"`
}

// ThumbnailLocation returns the deterministic object key for a thumbnail.
// Reprocessing an image always writes to the same key.
func ThumbnailLocation(imageID, variant string) string {
	return fmt.Sprintf("thumbnails/%s/%s.jpg", imageID, variant)
}

// Validate checks if the ThumbnailAsset has valid data.
func (a *ThumbnailAsset) Validate() error {
	if strings.TrimSpace(a.ImageID) == "" {
		return ErrInvalidImageID
	}
	if strings.TrimSpace(a.Variant) == "" {
		return ErrInvalidVariant
	}
	if strings.TrimSpace(a.Location) == "" {
		return fmt.Errorf("%w: location is required", ErrValidation)
	}
	if a.Width < 0 || a.Height < 0 {
		return fmt.Errorf("%w: negative dimensions", ErrValidation)
	}
	return nil
}
