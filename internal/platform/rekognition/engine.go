// Package rekognition provides a vision.Engine backed by Amazon Rekognition
// DetectLabels.
package rekognition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/aws/smithy-go"

	"github.com/phrazzld/imglabel/internal/domain"
	"github.com/phrazzld/imglabel/internal/platform/logger"
	"github.com/phrazzld/imglabel/internal/vision"
)

// Client is the subset of *rekognition.Client used by Engine.
type Client interface {
	DetectLabels(ctx context.Context, params *rekognition.DetectLabelsInput,
		optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error)
}

// Engine implements vision.Engine with Rekognition.
type Engine struct {
	client  Client
	options vision.Options
	logger  *slog.Logger
}

// NewEngine wraps client. The engine's own MaxLabels and MinConfidence are
// passed to Rekognition and enforced again on the reply.
func NewEngine(client Client, opts vision.Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		client:  client,
		options: opts,
		logger:  logger.With(slog.String("component", "rekognition_engine")),
	}
}

// DetectLabels implements vision.Engine.
func (e *Engine) DetectLabels(ctx context.Context, image []byte) ([]domain.Label, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty image", vision.ErrInvalidImage)
	}

	input := &rekognition.DetectLabelsInput{
		Image:         &types.Image{Bytes: image},
		MinConfidence: aws.Float32(float32(e.options.MinConfidence)),
	}
	if e.options.MaxLabels > 0 {
		input.MaxLabels = aws.Int32(int32(e.options.MaxLabels))
	}

	out, err := e.client.DetectLabels(ctx, input)
	if err != nil {
		mapped := mapError(err)
		logger.FromContextOrDefault(ctx, e.logger).Warn("DetectLabels failed",
			slog.String("error", err.Error()),
			slog.Bool("permanent", vision.IsPermanent(mapped)))
		return nil, mapped
	}

	labels := make([]domain.Label, 0, len(out.Labels))
	for _, l := range out.Labels {
		labels = append(labels, domain.Label{
			Name:       aws.ToString(l.Name),
			Confidence: float64(aws.ToFloat32(l.Confidence)),
		})
	}
	return e.options.Filter(labels), nil
}

// mapError classifies a Rekognition error by its service error code.
func mapError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "ProvisionedThroughputExceededException", "LimitExceededException":
			return fmt.Errorf("%w: %v", vision.ErrThrottled, err)
		case "InvalidImageFormatException", "ImageTooLargeException", "InvalidParameterException":
			return fmt.Errorf("%w: %v", vision.ErrInvalidImage, err)
		}
	}
	// InternalServerError, AccessDenied and transport failures are retried by
	// the queue.
	return fmt.Errorf("%w: %v", vision.ErrTransient, err)
}

var _ vision.Engine = (*Engine)(nil)
