package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/phrazzld/imglabel/internal/config"
	"github.com/phrazzld/imglabel/internal/notify"
	"github.com/phrazzld/imglabel/internal/platform/metrics"
	"github.com/phrazzld/imglabel/internal/platform/postgres"
	"github.com/phrazzld/imglabel/internal/queue"
	"github.com/phrazzld/imglabel/internal/service"
	"github.com/phrazzld/imglabel/internal/store"
	"github.com/phrazzld/imglabel/internal/thumbnail"
	"github.com/phrazzld/imglabel/internal/vision"
	"github.com/phrazzld/imglabel/internal/worker"
)

// statsInterval is how often queue gauges are refreshed.
const statsInterval = 15 * time.Second

// Options adjust what New builds.
type Options struct {
	// Worker builds the extraction worker and its engine.
	Worker bool
	// Engine replaces the configured vision engine. It is still wrapped in
	// the circuit breaker.
	Engine vision.Engine
	// Now replaces the clock of in-process components.
	Now func() time.Time
}

// App holds the assembled components.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	// DB is nil unless a postgres backend is selected.
	DB *sql.DB

	Queue       queue.Queue
	DeadLetters queue.DeadLetterSink
	Stats       queue.StatsReporter

	// Images receives uploads. It notifies the queue when notifications.emit is set.
	Images           store.ObjectStore
	ThumbnailObjects store.ObjectStore
	Labels           store.LabelStore
	Thumbnails       store.ThumbnailStore

	ImageService service.ImageService

	// Worker and Pool are nil unless Options.Worker is set.
	Worker *worker.Worker
	Pool   *worker.Pool

	closers []func() error
}

// New builds an App from cfg. Close releases what it opened.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: reg,
		Metrics:  metrics.New(reg),
	}

	b := &builder{app: a, cfg: cfg, opts: opts, logger: logger}
	if err := b.build(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

type builder struct {
	app    *App
	cfg    *config.Config
	opts   Options
	logger *slog.Logger
	aws    *awsClients
	// rawImages is the image object store without notification.
	rawImages store.ObjectStore
}

func (b *builder) build(ctx context.Context) error {
	if b.needsDatabase() {
		db, err := postgres.Open(ctx, b.cfg.Database)
		if err != nil {
			return err
		}
		b.app.DB = db
		b.app.closers = append(b.app.closers, db.Close)
	}

	if err := b.buildQueue(ctx); err != nil {
		return fmt.Errorf("failed to build queue: %w", err)
	}
	if err := b.buildStores(ctx); err != nil {
		return fmt.Errorf("failed to build stores: %w", err)
	}

	svc, err := service.NewImageService(service.ImageServiceDeps{
		Images:           b.app.Images,
		ThumbnailObjects: b.app.ThumbnailObjects,
		Labels:           b.app.Labels,
		Thumbnails:       b.app.Thumbnails,
		Suffixes:         notify.SuffixFilter(b.cfg.Notifications.Suffixes),
		Metrics:          b.app.Metrics,
	}, b.logger)
	if err != nil {
		return err
	}
	b.app.ImageService = svc

	if b.opts.Worker {
		if err := b.buildWorker(ctx); err != nil {
			return fmt.Errorf("failed to build worker: %w", err)
		}
	}
	return nil
}

func (b *builder) needsDatabase() bool {
	return b.cfg.Queue.Backend == "postgres" || b.cfg.Storage.Backend == "postgres"
}

func (b *builder) buildWorker(ctx context.Context) error {
	engine := b.opts.Engine
	if engine == nil {
		var err error
		if engine, err = b.buildEngine(ctx); err != nil {
			return err
		}
	}
	guarded := vision.NewBreakerEngine(engine, vision.BreakerConfig{
		Name:         b.cfg.Vision.Provider,
		MaxFailures:  b.cfg.Vision.Breaker.MaxFailures,
		OpenTimeout:  b.cfg.Vision.Breaker.OpenTimeout,
		OnOpenChange: b.app.Metrics.SetBreakerOpen,
	}, b.logger)

	resizer, err := thumbnail.NewResizer(b.cfg.Thumbnail.Variants, b.cfg.Thumbnail.JPEGQuality,
		thumbnail.WithMaxPixels(b.cfg.Thumbnail.MaxPixels))
	if err != nil {
		return err
	}

	w, err := worker.New(worker.Dependencies{
		Queue: b.app.Queue,
		// The worker reads originals without re-notifying.
		Images:           b.rawImages,
		ThumbnailObjects: b.app.ThumbnailObjects,
		Labels:           b.app.Labels,
		Thumbnails:       b.app.Thumbnails,
		Engine:           guarded,
		Transformer:      resizer,
		Metrics:          b.app.Metrics,
	}, worker.Config{
		VisibilityTimeout: b.cfg.Queue.VisibilityTimeout,
		WaitTime:          b.cfg.Queue.WaitTime,
		MaxMessages:       b.cfg.Queue.MaxMessages,
		HeartbeatInterval: b.cfg.Worker.HeartbeatInterval,
		ProcessTimeout:    b.cfg.Worker.ProcessTimeout,
		Suffixes:          b.cfg.Notifications.Suffixes,
	}, b.logger)
	if err != nil {
		return err
	}
	b.app.Worker = w
	b.app.Pool = worker.NewPool(w, b.cfg.Worker.Count, b.logger)
	return nil
}

// StartBackground starts the worker pool, if built, and the queue gauge
// refresher. Both stop when ctx is done or Close is called.
func (a *App) StartBackground(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	a.closers = append(a.closers, func() error { cancel(); return nil })

	if a.Stats != nil {
		go a.Metrics.RefreshQueueStats(ctx, a.Stats, statsInterval, a.Logger)
	}
	if a.Pool != nil {
		a.Pool.Start(ctx)
		a.closers = append(a.closers, func() error { a.Pool.Stop(); return nil })
	}
}

// Close stops background work and releases connections, in reverse order
// of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
