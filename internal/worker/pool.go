package worker

import (
	"context"
	"log/slog"
	"sync"
)

// Pool runs a Worker on several goroutines.
type Pool struct {
	worker *Worker
	count  int
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool creates a pool of count goroutines. A count below one is raised to one.
func NewPool(w *Worker, count int, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	if count <= 0 {
		logger.Warn("invalid worker count specified, using default",
			slog.Int("specified_count", count),
			slog.Int("default_count", 1))
		count = 1
	}
	return &Pool{worker: w, count: count, logger: logger}
}

// Start launches the workers. They run until Stop is called or ctx is done.
// Calling Start on a running pool does nothing.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.logger.Info("starting worker pool", slog.Int("workers", p.count))
	for i := 0; i < p.count; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.worker.run(ctx, p.worker.logger.With(slog.Int("worker_id", id)))
		}(i)
	}
}

// Stop cancels the workers and waits for in-flight messages to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}
