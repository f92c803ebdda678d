package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/imglabel/internal/queue"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveReceived(3)
	m.ObserveProcessed(OutcomeSucceeded, 100*time.Millisecond)
	m.ObserveProcessed(OutcomeTransient, time.Second)
	m.ObserveUpload()
	m.SetBreakerOpen(true)
	m.SetQueueStats(queue.Stats{Visible: 2, Leased: 1, DeadLettered: 4})

	assert.Equal(t, 3.0, testutil.ToFloat64(m.MessagesReceived))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesProcessed.WithLabelValues(OutcomeSucceeded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Uploads))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BreakerState))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.QueueMessages.WithLabelValues("dead_lettered")))

	count, err := testutil.GatherAndCount(reg, "imglabel_processing_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveReceived(1)
		m.ObserveProcessed(OutcomePermanent, time.Second)
		m.ObserveUpload()
		m.SetBreakerOpen(false)
		m.SetQueueStats(queue.Stats{})
		m.RefreshQueueStats(context.Background(), queue.NewMemoryQueue(queue.MemoryQueueConfig{}), time.Second, nil)
	})
}

func TestRefreshQueueStats(t *testing.T) {
	m := New(prometheus.NewRegistry())
	q := queue.NewMemoryQueue(queue.MemoryQueueConfig{MaxReceiveCount: 2})
	_, err := q.Enqueue(context.Background(), []byte("x"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.RefreshQueueStats(ctx, q, 10*time.Millisecond, nil)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.QueueMessages.WithLabelValues("visible")) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
