package vision

import (
	"context"

	"github.com/phrazzld/imglabel/internal/domain"
)

// Engine detects labels in an image.
// Version: 1.0
type Engine interface {
	// DetectLabels returns labels ordered by the engine's preference, usually
	// descending confidence. Errors wrap ErrThrottled, ErrTransient or
	// ErrInvalidImage.
	DetectLabels(ctx context.Context, image []byte) ([]domain.Label, error)
}

// Options bound the labels an engine returns.
type Options struct {
	MaxLabels int
	// MinConfidence is a percentage in [0, 100].
	MinConfidence float64
}

// Filter drops labels below the minimum confidence and caps the result at
// MaxLabels, keeping the input order.
func (o Options) Filter(labels []domain.Label) []domain.Label {
	out := make([]domain.Label, 0, len(labels))
	for _, l := range labels {
		if l.Name == "" || l.Confidence < o.MinConfidence {
			continue
		}
		out = append(out, l)
		if o.MaxLabels > 0 && len(out) == o.MaxLabels {
			break
		}
	}
	return out
}
