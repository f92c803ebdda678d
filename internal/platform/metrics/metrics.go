// Package metrics defines the Prometheus collectors exported by the server
// and worker processes.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/phrazzld/imglabel/internal/queue"
)

// Outcome label values for MessagesProcessed.
const (
	OutcomeSucceeded = "succeeded"
	OutcomePermanent = "permanent"
	OutcomeTransient = "transient"
)

// Metrics holds every collector. Create it with New against a registry; the
// zero value is not usable, but a nil *Metrics is and records nothing.
type Metrics struct {
	MessagesReceived   prometheus.Counter
	MessagesProcessed  *prometheus.CounterVec
	ProcessingDuration prometheus.Histogram
	QueueMessages      *prometheus.GaugeVec
	Uploads            prometheus.Counter
	BreakerState       prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imglabel_messages_received_total",
			Help: "Total number of queue messages leased by workers",
		}),
		MessagesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imglabel_messages_processed_total",
			Help: "Total number of processed messages by outcome",
		}, []string{"outcome"}),
		ProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "imglabel_processing_duration_seconds",
			Help:    "Time spent processing a single message",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		QueueMessages: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "imglabel_queue_messages",
			Help: "Messages in the queue and dead-letter sink by state",
		}, []string{"state"}),
		Uploads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imglabel_uploads_total",
			Help: "Total number of accepted image uploads",
		}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "imglabel_vision_breaker_open",
			Help: "1 while the vision engine circuit breaker is open",
		}),
	}

	reg.MustRegister(
		m.MessagesReceived,
		m.MessagesProcessed,
		m.ProcessingDuration,
		m.QueueMessages,
		m.Uploads,
		m.BreakerState,
	)
	return m
}

// ObserveReceived counts n leased messages.
func (m *Metrics) ObserveReceived(n int) {
	if m == nil {
		return
	}
	m.MessagesReceived.Add(float64(n))
}

// ObserveProcessed records one processed message.
func (m *Metrics) ObserveProcessed(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.MessagesProcessed.WithLabelValues(outcome).Inc()
	m.ProcessingDuration.Observe(d.Seconds())
}

// ObserveUpload counts one accepted upload.
func (m *Metrics) ObserveUpload() {
	if m == nil {
		return
	}
	m.Uploads.Inc()
}

// SetBreakerOpen records the circuit breaker state.
func (m *Metrics) SetBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.BreakerState.Set(1)
		return
	}
	m.BreakerState.Set(0)
}

// SetQueueStats publishes a queue snapshot.
func (m *Metrics) SetQueueStats(s queue.Stats) {
	if m == nil {
		return
	}
	m.QueueMessages.WithLabelValues("visible").Set(float64(s.Visible))
	m.QueueMessages.WithLabelValues("leased").Set(float64(s.Leased))
	m.QueueMessages.WithLabelValues("dead_lettered").Set(float64(s.DeadLettered))
}

// RefreshQueueStats polls reporter every interval until ctx is done.
func (m *Metrics) RefreshQueueStats(ctx context.Context, reporter queue.StatsReporter, interval time.Duration, logger *slog.Logger) {
	if m == nil || reporter == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		stats, err := reporter.Stats(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("failed to refresh queue stats", slog.String("error", err.Error()))
		} else {
			m.SetQueueStats(stats)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
