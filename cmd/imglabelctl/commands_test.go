package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/imglabel/internal/app"
	"github.com/phrazzld/imglabel/internal/config"
	"github.com/phrazzld/imglabel/internal/domain"
	"github.com/phrazzld/imglabel/internal/platform/logger"
	"github.com/phrazzld/imglabel/internal/queue"
	"github.com/phrazzld/imglabel/internal/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 8080, LogLevel: "warn", MaxUploadBytes: 1 << 20, ShutdownTimeout: time.Second},
		Queue: config.QueueConfig{
			Backend:           "memory",
			VisibilityTimeout: 30 * time.Second,
			MaxReceiveCount:   2,
			MaxMessages:       10,
			PollInterval:      10 * time.Millisecond,
		},
		Storage:       config.StorageConfig{Backend: "memory"},
		ObjectStore:   config.ObjectStoreConfig{Backend: "memory", ImageBucket: "images", ThumbnailBucket: "thumbnails"},
		Notifications: config.NotificationsConfig{Suffixes: []string{".jpeg"}},
		Vision:        config.VisionConfig{Provider: "rekognition", MaxLabels: 10},
		Thumbnail:     config.ThumbnailConfig{Variants: map[string]int{"small": 16}, JPEGQuality: 80},
	}
}

type cliEnv struct {
	ctx   *commandContext
	app   *app.App
	clock *fakeClock
}

// newCLIEnv wires the commands to one in-memory App shared across runs.
func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	log, _ := logger.GetTestLogger(t)
	a, err := app.New(context.Background(), testConfig(), log, app.Options{Now: clock.Now})
	require.NoError(t, err)

	ctx := newCommandContext()
	ctx.load = func() (*config.Config, error) { return testConfig(), nil }
	ctx.openApp = func(context.Context, *config.Config, *slog.Logger) (*app.App, error) { return a, nil }
	ctx.openDB = func(context.Context, *config.Config) (*sql.DB, error) {
		return nil, errors.New("no database in tests")
	}
	return &cliEnv{ctx: ctx, app: a, clock: clock}
}

// deadLetter enqueues a notification for key and lets every lease expire
// until the queue dead-letters it.
func (e *cliEnv) deadLetter(t *testing.T, key string) string {
	t.Helper()
	bg := context.Background()
	n, err := domain.NewNotification("images", key, e.clock.Now())
	require.NoError(t, err)
	body, err := n.Encode()
	require.NoError(t, err)
	_, err = e.app.Queue.Enqueue(bg, body)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		msgs, err := e.app.Queue.Receive(bg, queue.ReceiveOptions{VisibilityTimeout: 30 * time.Second, MaxMessages: 10})
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		e.clock.Advance(31 * time.Second)
	}

	entries, err := e.app.DeadLetters.ListDeadLetters(bg, 0)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	return entries[len(entries)-1].ID
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(e.ctx)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDLQListEmpty(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "dlq", "list")

	require.NoError(t, err)
	assert.Contains(t, out, "Dead-letter queue is empty")
}

func TestDLQListAndShow(t *testing.T) {
	env := newCLIEnv(t)
	id := env.deadLetter(t, "uploads/img1.jpeg")

	out, err := env.run(t, "dlq", "list")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "uploads/img1.jpeg")
	assert.Contains(t, out, "3")

	out, err = env.run(t, "dlq", "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Payload:")
	assert.Contains(t, out, `"object_key":"uploads/img1.jpeg"`)
}

func TestDLQShowUnknown(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "dlq", "show", "missing")

	assert.ErrorIs(t, err, store.ErrDeadLetterNotFound)
}

func TestDLQRedrive(t *testing.T) {
	env := newCLIEnv(t)
	id := env.deadLetter(t, "uploads/img2.jpeg")

	out, err := env.run(t, "dlq", "redrive", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Redrove "+id)

	stats, err := env.app.Stats.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, queue.Stats{Visible: 1}, stats)

	_, err = env.run(t, "dlq", "redrive", id)
	assert.ErrorIs(t, err, queue.ErrAlreadyRedriven)
}

func TestStats(t *testing.T) {
	env := newCLIEnv(t)
	env.deadLetter(t, "uploads/img3.jpeg")

	out, err := env.run(t, "stats")

	require.NoError(t, err)
	assert.Contains(t, out, "Dead-lettered")
	assert.Contains(t, out, "Visible")
}

func TestMigrateRejectsUnknownCommand(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "migrate", "sideways")

	assert.Error(t, err)
}

func TestMigrateRequiresDatabaseURL(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "migrate", "up")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.url")
}

func TestDefaultOpenAppRefusesMemoryQueue(t *testing.T) {
	log, _ := logger.GetTestLogger(t)

	a, err := newCommandContext().openApp(context.Background(), testConfig(), log)

	assert.Nil(t, a)
	require.ErrorIs(t, err, app.ErrProcessLocalBackend)
	assert.Contains(t, err.Error(), "queue.backend")
}
