package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/phrazzld/imglabel/internal/domain"
	"github.com/phrazzld/imglabel/internal/platform/logger"
	"github.com/phrazzld/imglabel/internal/vision"
)

// contentGenerator is the subset of *genai.Models used by Engine.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content,
		config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config contains the settings for Engine.
type Config struct {
	APIKey    string
	ModelName string
	Options   vision.Options
}

// Engine implements vision.Engine using the Gemini API.
type Engine struct {
	logger    *slog.Logger
	generator contentGenerator
	model     string
	options   vision.Options
}

// NewEngine creates a Gemini-backed engine.
func NewEngine(ctx context.Context, logger *slog.Logger, cfg Config) (*Engine, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", vision.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", vision.ErrInvalidConfig, err)
	}

	return newEngine(logger, cfg, client.Models)
}

func newEngine(logger *slog.Logger, cfg Config, gen contentGenerator) (*Engine, error) {
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", vision.ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		logger:    logger.With(slog.String("component", "gemini_engine")),
		generator: gen,
		model:     cfg.ModelName,
		options:   cfg.Options,
	}, nil
}

// DetectLabels implements vision.Engine.
func (e *Engine) DetectLabels(ctx context.Context, image []byte) ([]domain.Label, error) {
	log := logger.FromContextOrDefault(ctx, e.logger)

	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty image", vision.ErrInvalidImage)
	}

	mimeType := http.DetectContentType(image)
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("%w: unsupported content type %s", vision.ErrInvalidImage, mimeType)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(image, mimeType),
			genai.NewPartFromText(defaultPrompt),
		}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0),
	}

	resp, err := e.generator.GenerateContent(ctx, e.model, contents, config)
	if err != nil {
		mapped := mapError(err)
		log.Warn("Gemini API call failed",
			slog.String("error", err.Error()),
			slog.Bool("permanent", vision.IsPermanent(mapped)))
		return nil, mapped
	}

	labels, err := parseResponse(resp)
	if err != nil {
		log.Warn("unusable Gemini response", slog.String("error", err.Error()))
		return nil, err
	}

	filtered := e.options.Filter(labels)
	log.Debug("labels detected",
		slog.Int("returned", len(labels)),
		slog.Int("kept", len(filtered)))
	return filtered, nil
}

// parseResponse extracts labels from the first candidate. Safety blocks are
// permanent; an empty or malformed reply is treated as a transient model
// hiccup.
func parseResponse(resp *genai.GenerateContentResponse) ([]domain.Label, error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: nil response", vision.ErrTransient)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("%w: prompt blocked: %s", vision.ErrInvalidImage, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates in response", vision.ErrTransient)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, fmt.Errorf("%w: content blocked by safety filters", vision.ErrInvalidImage)
	}
	if candidate.Content == nil {
		return nil, fmt.Errorf("%w: empty content in response", vision.ErrTransient)
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			text.WriteString(part.Text)
		}
	}

	var parsed responseSchema
	if err := json.Unmarshal([]byte(stripCodeFence(text.String())), &parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON response: %v", vision.ErrTransient, err)
	}

	labels := make([]domain.Label, 0, len(parsed.Labels))
	for _, l := range parsed.Labels {
		conf := l.Confidence
		// Some replies use a 0-1 scale despite the prompt.
		if conf > 0 && conf <= 1 {
			conf *= 100
		}
		if conf < 0 || conf > 100 {
			continue
		}
		labels = append(labels, domain.Label{Name: strings.TrimSpace(l.Name), Confidence: conf})
	}
	return labels, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// mapError classifies a Gemini API error.
func mapError(err error) error {
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	code := 0
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr):
		code = apiErrPtr.Code
	}

	switch {
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %v", vision.ErrThrottled, err)
	case code >= 500:
		return fmt.Errorf("%w: %v", vision.ErrTransient, err)
	case code == http.StatusBadRequest || code == http.StatusRequestEntityTooLarge:
		return fmt.Errorf("%w: %v", vision.ErrInvalidImage, err)
	case code != 0:
		// Auth, permission and not-found errors are deployment problems that
		// must not discard messages.
		return fmt.Errorf("%w: %v", vision.ErrTransient, err)
	}

	// Network failures, timeouts and cancellations are retried by the queue.
	return fmt.Errorf("%w: %v", vision.ErrTransient, err)
}

var _ vision.Engine = (*Engine)(nil)
