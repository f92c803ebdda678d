package vision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/phrazzld/imglabel/internal/domain"
)

// BreakerConfig tunes the circuit breaker around an engine.
type BreakerConfig struct {
	Name string
	// MaxFailures is the number of consecutive transient failures that opens the circuit.
	MaxFailures uint32
	// OpenTimeout is how long the circuit stays open before a probe request is allowed.
	OpenTimeout time.Duration
	// OnOpenChange, if set, is called with true when the circuit opens and
	// false when it closes again.
	OnOpenChange func(open bool)
}

// BreakerEngine guards an Engine with a circuit breaker. While the circuit is
// open, calls fail fast with ErrThrottled so messages wait out their leases
// instead of hammering a failing engine. Permanent image errors do not count
// as failures.
type BreakerEngine struct {
	next Engine
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerEngine wraps next in a circuit breaker.
func NewBreakerEngine(next Engine, cfg BreakerConfig, logger *slog.Logger) *BreakerEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Name == "" {
		cfg.Name = "vision"
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	log := logger.With(slog.String("component", "vision_breaker"))
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || IsPermanent(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			if cfg.OnOpenChange != nil {
				cfg.OnOpenChange(to == gobreaker.StateOpen)
			}
		},
	}

	return &BreakerEngine{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

// DetectLabels implements Engine.
func (b *BreakerEngine) DetectLabels(ctx context.Context, image []byte) ([]domain.Label, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.DetectLabels(ctx, image)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: circuit %s: %v", ErrThrottled, b.cb.Name(), err)
	}
	if err != nil {
		return nil, err
	}
	labels, _ := res.([]domain.Label)
	return labels, nil
}

// State returns the breaker's current state name.
func (b *BreakerEngine) State() string {
	return b.cb.State().String()
}

var _ Engine = (*BreakerEngine)(nil)
