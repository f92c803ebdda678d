package domain

import (
	"fmt"
	"strings"
	"time"
)

// Label is a single detected label and the engine's confidence in it, in
// percent.
type Label struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// LabelRecord holds the labels extracted for one image. There is at most one
// record per ImageID and writes overwrite it.
type LabelRecord struct {
	ImageID     string    `json:"image_id"`
	Labels      []Label   `json:"labels"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// NewLabelRecord creates a validated LabelRecord. Labels keep the order the
// engine returned them in.
func NewLabelRecord(imageID string, labels []Label, extractedAt time.Time) (*LabelRecord, error) {
	if labels == nil {
		labels = []Label{}
	}
	r := &LabelRecord{
		ImageID:     imageID,
		Labels:      labels,
		ExtractedAt: extractedAt.UTC(),
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks if the LabelRecord has valid data.
func (r *LabelRecord) Validate() error {
	if strings.TrimSpace(r.ImageID) == "" {
		return ErrInvalidImageID
	}
	if r.ExtractedAt.IsZero() {
		return fmt.Errorf("%w: extracted_at is required", ErrValidation)
	}
	for i, l := range r.Labels {
		if strings.TrimSpace(l.Name) == "" {
			return fmt.Errorf("%w: label %d has no name", ErrValidation, i)
		}
		if l.Confidence < 0 || l.Confidence > 100 {
			return fmt.Errorf("%w: label %q confidence %.2f out of range", ErrValidation, l.Name, l.Confidence)
		}
	}
	return nil
}
