//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/phrazzld/imglabel/internal/config"
	"github.com/phrazzld/imglabel/internal/domain"
	"github.com/phrazzld/imglabel/internal/queue"
	"github.com/phrazzld/imglabel/internal/store"
)

// testDatabaseURLEnv overrides the container with an existing database.
const testDatabaseURLEnv = "IMGLABEL_TEST_DATABASE_URL"

var (
	sharedOnce sync.Once
	sharedDB   *sql.DB
	sharedErr  error
)

func TestMain(m *testing.M) {
	code := m.Run()
	if sharedDB != nil {
		_ = sharedDB.Close()
	}
	os.Exit(code)
}

// setupDB returns a migrated database, starting a postgres container on first use.
func setupDB(t *testing.T) *sql.DB {
	t.Helper()

	sharedOnce.Do(func() {
		ctx := context.Background()
		url := os.Getenv(testDatabaseURLEnv)
		if url == "" {
			container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
				tcpostgres.WithDatabase("imglabel"),
				tcpostgres.WithUsername("imglabel"),
				tcpostgres.WithPassword("imglabel"),
				testcontainers.WithWaitStrategy(
					wait.ForLog("database system is ready to accept connections").
						WithOccurrence(2).
						WithStartupTimeout(60*time.Second)),
			)
			if err != nil {
				sharedErr = err
				return
			}
			url, err = container.ConnectionString(ctx, "sslmode=disable")
			if err != nil {
				sharedErr = err
				return
			}
		}

		sharedDB, sharedErr = Open(ctx, config.DatabaseConfig{URL: url, MaxOpenConns: 20})
		if sharedErr != nil {
			return
		}
		sharedErr = Migrate(ctx, sharedDB, "up", nil)
	})
	require.NoError(t, sharedErr, "failed to set up test database")
	return sharedDB
}

// newTestQueue returns a LeaseQueue on a queue name unique to the test.
func newTestQueue(t *testing.T, db *sql.DB, maxReceiveCount int) *LeaseQueue {
	t.Helper()
	return NewLeaseQueue(db, LeaseQueueConfig{
		Name:            t.Name(),
		MaxReceiveCount: maxReceiveCount,
		PollInterval:    10 * time.Millisecond,
	}, nil)
}

func receiveOne(t *testing.T, q *LeaseQueue, visibility time.Duration) *queue.Message {
	t.Helper()
	msgs, err := q.Receive(context.Background(), queue.ReceiveOptions{VisibilityTimeout: visibility})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	return msgs[0]
}

func TestLeaseQueueLifecycle(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	q := newTestQueue(t, db, 2)

	id, err := q.Enqueue(ctx, []byte(`{"object_key":"img1.jpeg"}`))
	require.NoError(t, err)

	msg := receiveOne(t, q, time.Minute)
	assert.Equal(t, id, msg.ID)
	assert.Equal(t, 0, msg.ReceiveCount)

	empty, err := q.Receive(ctx, queue.ReceiveOptions{VisibilityTimeout: time.Minute})
	require.NoError(t, err)
	assert.Empty(t, empty, "leased message must be invisible")

	require.NoError(t, q.ExtendLease(ctx, msg, 2*time.Minute))
	require.NoError(t, q.Delete(ctx, msg))
	require.NoError(t, q.Delete(ctx, msg), "second delete is a no-op")
	assert.ErrorIs(t, q.ExtendLease(ctx, msg, time.Minute), queue.ErrLeaseLost)

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, queue.Stats{}, stats)
}

func TestLeaseQueueDeadLettersAfterBudget(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	const maxReceiveCount = 2
	q := newTestQueue(t, db, maxReceiveCount)

	id, err := q.Enqueue(ctx, []byte("always fails"))
	require.NoError(t, err)

	for attempt := 1; attempt <= maxReceiveCount+1; attempt++ {
		msg := receiveOne(t, q, 50*time.Millisecond)
		assert.Equal(t, attempt, msg.Attempt())
		require.NoError(t, q.NoteFailure(ctx, msg, "engine throttled"))
		time.Sleep(100 * time.Millisecond)
	}

	msgs, err := q.Receive(ctx, queue.ReceiveOptions{VisibilityTimeout: time.Minute})
	require.NoError(t, err)
	assert.Empty(t, msgs)

	dls, err := q.ListDeadLetters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, dls, 1)
	assert.Equal(t, id, dls[0].Message.ID)
	assert.Equal(t, maxReceiveCount+1, dls[0].FailureCount)
	assert.Equal(t, "engine throttled", dls[0].LastError)

	newID, err := q.Redrive(ctx, dls[0].ID)
	require.NoError(t, err)
	redriven := receiveOne(t, q, time.Minute)
	assert.Equal(t, newID, redriven.ID)
	assert.Equal(t, []byte("always fails"), redriven.Body)

	_, err = q.Redrive(ctx, dls[0].ID)
	assert.ErrorIs(t, err, queue.ErrAlreadyRedriven)

	_, err = q.GetDeadLetter(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, store.ErrDeadLetterNotFound)
}

func TestLeaseQueueConcurrentReceiveIsExclusive(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	q := newTestQueue(t, db, 2)

	const messages = 100
	for i := 0; i < messages; i++ {
		_, err := q.Enqueue(ctx, []byte{byte(i)})
		require.NoError(t, err)
	}

	var (
		mu   sync.Mutex
		seen = make(map[string]int)
		wg   sync.WaitGroup
	)
	for c := 0; c < 8; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				msgs, err := q.Receive(ctx, queue.ReceiveOptions{VisibilityTimeout: time.Minute, MaxMessages: 5})
				if err != nil || len(msgs) == 0 {
					return
				}
				mu.Lock()
				for _, m := range msgs {
					seen[m.ID]++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, messages)
	for id, n := range seen {
		assert.Equal(t, 1, n, "message %s leased %d times", id, n)
	}
}

func TestLeaseQueueLongPoll(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	q := newTestQueue(t, db, 2)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_, _ = q.Enqueue(ctx, []byte("late"))
	}()

	msgs, err := q.Receive(ctx, queue.ReceiveOptions{WaitTime: 5 * time.Second, VisibilityTimeout: time.Minute})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, []byte("late"), msgs[0].Body)
}

func TestLabelStoreOverwrite(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	s := NewPostgresLabelStore(db, nil)
	imageID := "img-" + t.Name()

	_, err := s.Get(ctx, imageID)
	assert.ErrorIs(t, err, store.ErrLabelsNotFound)

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	first, err := domain.NewLabelRecord(imageID, []domain.Label{{Name: "Cat", Confidence: 99}}, at)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, first))
	require.NoError(t, s.Put(ctx, first))

	got, err := s.Get(ctx, imageID)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	newer, err := domain.NewLabelRecord(imageID, []domain.Label{{Name: "Dog", Confidence: 80}}, at.Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, newer))

	older, err := domain.NewLabelRecord(imageID, []domain.Label{{Name: "Stale", Confidence: 50}}, at)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, older))

	got, err = s.Get(ctx, imageID)
	require.NoError(t, err)
	assert.Equal(t, newer, got, "an older extraction must not replace a newer one")

	assert.ErrorIs(t, s.Put(ctx, &domain.LabelRecord{}), store.ErrInvalidEntity)
}

func TestThumbnailStoreOverwrite(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	s := NewPostgresThumbnailStore(db, nil)
	imageID := "img-" + t.Name()

	_, err := s.Get(ctx, imageID, "small")
	assert.ErrorIs(t, err, store.ErrThumbnailNotFound)

	asset := &domain.ThumbnailAsset{
		ImageID: imageID, Variant: "small", Location: domain.ThumbnailLocation(imageID, "small"),
		Width: 128, Height: 96, ContentType: "image/jpeg",
	}
	require.NoError(t, s.Put(ctx, asset))
	asset.Height = 100
	require.NoError(t, s.Put(ctx, asset))

	got, err := s.Get(ctx, imageID, "small")
	require.NoError(t, err)
	assert.Equal(t, asset, got)
}
