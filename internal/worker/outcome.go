package worker

import (
	"errors"

	"github.com/phrazzld/imglabel/internal/domain"
	"github.com/phrazzld/imglabel/internal/platform/metrics"
	"github.com/phrazzld/imglabel/internal/store"
	"github.com/phrazzld/imglabel/internal/thumbnail"
	"github.com/phrazzld/imglabel/internal/vision"
)

// ErrSuffixNotAccepted is returned for a notification whose object key does
// not match the configured suffixes.
var ErrSuffixNotAccepted = errors.New("object key suffix not accepted")

// Outcome is the result of processing one message.
type Outcome string

// Possible outcomes. The values double as metric labels.
const (
	// OutcomeSucceeded means results were stored and the message deleted.
	OutcomeSucceeded Outcome = metrics.OutcomeSucceeded
	// OutcomePermanent means the message can never succeed and was deleted.
	OutcomePermanent Outcome = metrics.OutcomePermanent
	// OutcomeTransient means the message was left for redelivery.
	OutcomeTransient Outcome = metrics.OutcomeTransient
)

// permanentErrors never succeed on redelivery.
var permanentErrors = []error{
	domain.ErrInvalidNotification,
	ErrSuffixNotAccepted,
	store.ErrObjectNotFound,
	vision.ErrInvalidImage,
	thumbnail.ErrUndecodable,
}

// Classify maps a processing error to an Outcome. Unknown errors are
// transient.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeSucceeded
	}
	for _, target := range permanentErrors {
		if errors.Is(err, target) {
			return OutcomePermanent
		}
	}
	return OutcomeTransient
}
