package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/phrazzld/imglabel/internal/domain"
	"github.com/phrazzld/imglabel/internal/notify"
	"github.com/phrazzld/imglabel/internal/platform/logger"
	"github.com/phrazzld/imglabel/internal/platform/metrics"
	"github.com/phrazzld/imglabel/internal/queue"
	"github.com/phrazzld/imglabel/internal/store"
	"github.com/phrazzld/imglabel/internal/thumbnail"
	"github.com/phrazzld/imglabel/internal/vision"
)

// errorBackoff is how long the loop pauses after a failed Receive.
const errorBackoff = time.Second

// ackTimeout bounds the delete that follows processing. It runs detached
// from the worker's context so results stored during shutdown are still
// acknowledged.
const ackTimeout = 5 * time.Second

// Config contains the settings for a Worker.
type Config struct {
	VisibilityTimeout time.Duration
	WaitTime          time.Duration
	MaxMessages       int
	// HeartbeatInterval enables lease extension while a message is being
	// processed. Zero disables it.
	HeartbeatInterval time.Duration
	// ProcessTimeout bounds the handling of a single message. Zero means no
	// limit beyond the lease.
	ProcessTimeout time.Duration
	// Suffixes lists the object key suffixes the worker accepts.
	Suffixes []string
}

// Dependencies are the collaborators of a Worker.
type Dependencies struct {
	Queue queue.Queue
	// Images holds uploaded originals.
	Images store.ObjectStore
	// ThumbnailObjects receives rendered thumbnail bytes.
	ThumbnailObjects store.ObjectStore
	Labels           store.LabelStore
	Thumbnails       store.ThumbnailStore
	Engine           vision.Engine
	Transformer      thumbnail.Transformer
	// Metrics is optional.
	Metrics *metrics.Metrics
}

func (d Dependencies) validate() error {
	switch {
	case d.Queue == nil:
		return errors.New("worker: queue is required")
	case d.Images == nil || d.ThumbnailObjects == nil:
		return errors.New("worker: object stores are required")
	case d.Labels == nil || d.Thumbnails == nil:
		return errors.New("worker: label and thumbnail stores are required")
	case d.Engine == nil:
		return errors.New("worker: vision engine is required")
	case d.Transformer == nil:
		return errors.New("worker: thumbnail transformer is required")
	}
	return nil
}

// Worker processes queue messages. A single Worker may be run from several
// goroutines at once; it holds no per-message state.
type Worker struct {
	deps   Dependencies
	cfg    Config
	filter notify.SuffixFilter
	logger *slog.Logger
}

// New creates a Worker.
func New(deps Dependencies, cfg Config, logger *slog.Logger) (*Worker, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if cfg.VisibilityTimeout <= 0 {
		return nil, fmt.Errorf("worker: visibility timeout must be positive")
	}
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		deps:   deps,
		cfg:    cfg,
		filter: notify.SuffixFilter(cfg.Suffixes),
		logger: logger.With(slog.String("component", "worker")),
	}, nil
}

// Run receives and processes messages until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.run(ctx, w.logger)
}

func (w *Worker) run(ctx context.Context, log *slog.Logger) {
	log.Debug("worker started")
	for ctx.Err() == nil {
		if _, err := w.runOnce(ctx, log); err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Error("failed to receive messages", slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
			case <-time.After(errorBackoff):
			}
		}
	}
	log.Debug("worker stopped")
}

// RunOnce performs a single Receive and processes what it returns. It reports
// the number of messages handled.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	return w.runOnce(ctx, w.logger)
}

func (w *Worker) runOnce(ctx context.Context, log *slog.Logger) (int, error) {
	msgs, err := w.deps.Queue.Receive(ctx, queue.ReceiveOptions{
		WaitTime:          w.cfg.WaitTime,
		VisibilityTimeout: w.cfg.VisibilityTimeout,
		MaxMessages:       w.cfg.MaxMessages,
	})
	if err != nil {
		return 0, err
	}
	w.deps.Metrics.ObserveReceived(len(msgs))

	for i, msg := range msgs {
		// Unprocessed messages of the batch go back when their leases expire.
		if ctx.Err() != nil {
			return i, nil
		}
		w.process(ctx, msg, log)
	}
	return len(msgs), nil
}

// Process handles one leased message and acknowledges it when appropriate.
func (w *Worker) Process(ctx context.Context, msg *queue.Message) Outcome {
	return w.process(ctx, msg, w.logger)
}

func (w *Worker) process(ctx context.Context, msg *queue.Message, log *slog.Logger) Outcome {
	start := time.Now()
	log = log.With(
		slog.String("message_id", msg.ID),
		slog.Int("attempt", msg.Attempt()))

	msgCtx, cancel := ctx, context.CancelFunc(func() {})
	if w.cfg.ProcessTimeout > 0 {
		msgCtx, cancel = context.WithTimeout(ctx, w.cfg.ProcessTimeout)
	}
	msgCtx = logger.WithLogger(msgCtx, log)

	stopHeartbeat := w.startHeartbeat(msgCtx, msg, log)
	err := w.safeHandle(msgCtx, msg)
	stopHeartbeat()
	cancel()

	outcome := Classify(err)
	switch outcome {
	case OutcomeSucceeded:
		w.ack(ctx, msg, log)
		log.Info("message processed", slog.Duration("duration", time.Since(start)))
	case OutcomePermanent:
		log.Warn("discarding message that cannot be processed", slog.String("error", err.Error()))
		w.ack(ctx, msg, log)
	default:
		log.Warn("processing failed, leaving message for redelivery", slog.String("error", err.Error()))
		w.noteFailure(ctx, msg, err, log)
	}

	w.deps.Metrics.ObserveProcessed(string(outcome), time.Since(start))
	return outcome
}

// safeHandle turns a panic into a transient error so one bad message cannot
// kill the worker goroutine.
func (w *Worker) safeHandle(ctx context.Context, msg *queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.FromContextOrDefault(ctx, w.logger).Error("panic while processing message",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.handle(ctx, msg)
}

// handle runs the pipeline for one notification.
func (w *Worker) handle(ctx context.Context, msg *queue.Message) error {
	n, err := domain.ParseNotification(msg.Body)
	if err != nil {
		return err
	}
	if !w.filter.Accepts(n.ObjectKey) {
		return fmt.Errorf("%w: %s", ErrSuffixNotAccepted, n.ObjectKey)
	}

	imageID := n.ImageID()
	log := logger.FromContextOrDefault(ctx, w.logger).With(
		slog.String("image_id", imageID),
		slog.String("object_key", n.ObjectKey),
		slog.String("bucket", n.Bucket))

	data, err := w.deps.Images.Get(ctx, n.ObjectKey)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", n.ObjectKey, err)
	}

	labels, err := w.deps.Engine.DetectLabels(ctx, data)
	if err != nil {
		return fmt.Errorf("detecting labels: %w", err)
	}
	record, err := domain.NewLabelRecord(imageID, labels, n.EventTime)
	if err != nil {
		// Engine output that fails validation is an engine fault, not the
		// image's.
		return fmt.Errorf("%w: %v", vision.ErrTransient, err)
	}

	variants := w.deps.Transformer.Variants()
	assets := make([]*domain.ThumbnailAsset, 0, len(variants))
	for _, variant := range variants {
		thumb, err := w.deps.Transformer.Resize(ctx, data, variant)
		if err != nil {
			return fmt.Errorf("resizing to %s: %w", variant, err)
		}

		location := domain.ThumbnailLocation(imageID, variant)
		if err := w.deps.ThumbnailObjects.Put(ctx, location, thumb.Data, thumb.ContentType); err != nil {
			return fmt.Errorf("storing thumbnail %s: %w", location, err)
		}
		assets = append(assets, &domain.ThumbnailAsset{
			ImageID:     imageID,
			Variant:     variant,
			Location:    location,
			Width:       thumb.Width,
			Height:      thumb.Height,
			ContentType: thumb.ContentType,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, asset := range assets {
		g.Go(func() error {
			if err := w.deps.Thumbnails.Put(gctx, asset); err != nil {
				return fmt.Errorf("storing thumbnail metadata %s: %w", asset.Variant, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		if err := w.deps.Labels.Put(gctx, record); err != nil {
			return fmt.Errorf("storing labels: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	log.Debug("results stored",
		slog.Int("labels", len(record.Labels)),
		slog.Int("thumbnails", len(assets)))
	return nil
}

// ack deletes the message. A failed delete only means the message will be
// delivered again and reprocessed to the same result.
func (w *Worker) ack(ctx context.Context, msg *queue.Message, log *slog.Logger) {
	ackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ackTimeout)
	defer cancel()
	if err := w.deps.Queue.Delete(ackCtx, msg); err != nil {
		log.Error("failed to delete message", slog.String("error", err.Error()))
	}
}

func (w *Worker) noteFailure(ctx context.Context, msg *queue.Message, cause error, log *slog.Logger) {
	noter, ok := w.deps.Queue.(queue.FailureNoter)
	if !ok || ctx.Err() != nil {
		return
	}
	if err := noter.NoteFailure(ctx, msg, cause.Error()); err != nil {
		log.Debug("failed to record failure reason", slog.String("error", err.Error()))
	}
}

// startHeartbeat extends the message's lease every HeartbeatInterval until the
// returned function is called. It stops early if the lease is lost.
func (w *Worker) startHeartbeat(ctx context.Context, msg *queue.Message, log *slog.Logger) func() {
	if w.cfg.HeartbeatInterval <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(w.cfg.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				err := w.deps.Queue.ExtendLease(ctx, msg, w.cfg.VisibilityTimeout)
				if errors.Is(err, queue.ErrLeaseLost) {
					log.Warn("lease lost during processing")
					return
				}
				if err != nil {
					log.Warn("failed to extend lease", slog.String("error", err.Error()))
				}
			}
		}
	}()

	return func() {
		close(done)
		<-stopped
	}
}
