package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/imglabel/internal/platform/logger"
	"github.com/phrazzld/imglabel/internal/queue"
	"github.com/phrazzld/imglabel/internal/store"
)

// LeaseQueueConfig contains configuration for LeaseQueue.
type LeaseQueueConfig struct {
	// Name partitions queue_messages so several queues can share a database.
	Name string
	// MaxReceiveCount is the number of failed deliveries tolerated before a
	// message is dead-lettered.
	MaxReceiveCount int
	// PollInterval is how often an empty long-poll re-checks the table.
	PollInterval time.Duration
}

// DefaultLeaseQueueConfig returns the configuration used by the image pipeline.
func DefaultLeaseQueueConfig() LeaseQueueConfig {
	return LeaseQueueConfig{
		Name:            "images",
		MaxReceiveCount: 2,
		PollInterval:    500 * time.Millisecond,
	}
}

// LeaseQueue implements queue.Queue and queue.DeadLetterSink on PostgreSQL.
// Leases are rows in state 'leased' with a deadline. Expired leases are
// reaped at the start of every receive, inside the same transaction that
// grants new leases, using FOR UPDATE SKIP LOCKED so concurrent receivers
// never claim the same row.
type LeaseQueue struct {
	db     *sql.DB
	cfg    LeaseQueueConfig
	logger *slog.Logger
}

// NewLeaseQueue creates a new LeaseQueue. The schema must already be migrated.
func NewLeaseQueue(db *sql.DB, cfg LeaseQueueConfig, logger *slog.Logger) *LeaseQueue {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	defaults := DefaultLeaseQueueConfig()
	if cfg.Name == "" {
		cfg.Name = defaults.Name
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	if cfg.MaxReceiveCount < 0 {
		cfg.MaxReceiveCount = 0
	}

	return &LeaseQueue{
		db:     db,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "lease_queue"), slog.String("queue", cfg.Name)),
	}
}

var (
	_ queue.Queue          = (*LeaseQueue)(nil)
	_ queue.DeadLetterSink = (*LeaseQueue)(nil)
	_ queue.FailureNoter   = (*LeaseQueue)(nil)
	_ queue.StatsReporter  = (*LeaseQueue)(nil)
)

// Enqueue implements queue.Queue.
func (q *LeaseQueue) Enqueue(ctx context.Context, body []byte) (string, error) {
	if len(body) == 0 {
		return "", queue.ErrEmptyBody
	}
	id := uuid.New()
	if err := q.insert(ctx, q.db, id, body); err != nil {
		return "", err
	}
	return id.String(), nil
}

func (q *LeaseQueue) insert(ctx context.Context, db store.DBTX, id uuid.UUID, body []byte) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO queue_messages (id, queue_name, body) VALUES ($1, $2, $3)`,
		id, q.cfg.Name, body)
	if err != nil {
		return fmt.Errorf("failed to enqueue message: %w", MapError(err))
	}
	return nil
}

// reapExpiredQuery returns expired leases to visible and counts the failed delivery.
const reapExpiredQuery = `
	WITH expired AS (
		SELECT id FROM queue_messages
		WHERE queue_name = $1 AND state = 'leased' AND lease_deadline <= NOW()
		FOR UPDATE SKIP LOCKED
	)
	UPDATE queue_messages q
	SET state = 'visible', receive_count = q.receive_count + 1,
		receipt_handle = NULL, lease_deadline = NULL
	FROM expired
	WHERE q.id = expired.id`

// deadLetterQuery moves messages that exhausted their budget into dead_letters.
const deadLetterQuery = `
	WITH doomed AS (
		SELECT id FROM queue_messages
		WHERE queue_name = $1 AND state = 'visible' AND receive_count > $2
		FOR UPDATE SKIP LOCKED
	), moved AS (
		DELETE FROM queue_messages q
		USING doomed
		WHERE q.id = doomed.id
		RETURNING q.id, q.body, q.receive_count, q.last_error, q.enqueued_at
	)
	INSERT INTO dead_letters (id, queue_name, message_id, body, failure_count, last_error, enqueued_at, moved_at)
	SELECT gen_random_uuid(), $1, id, body, receive_count, last_error, enqueued_at, NOW()
	FROM moved`

// leaseQuery leases the oldest visible messages.
const leaseQuery = `
	WITH next AS (
		SELECT id FROM queue_messages
		WHERE queue_name = $1 AND state = 'visible' AND receive_count <= $2
		ORDER BY enqueued_at, id
		LIMIT $3
		FOR UPDATE SKIP LOCKED
	)
	UPDATE queue_messages q
	SET state = 'leased', receipt_handle = gen_random_uuid(),
		lease_deadline = NOW() + make_interval(secs => $4)
	FROM next
	WHERE q.id = next.id
	RETURNING q.id, q.receipt_handle, q.body, q.receive_count, q.lease_deadline, q.enqueued_at`

// Receive implements queue.Queue. An empty queue is polled every
// PollInterval until opts.WaitTime has elapsed.
func (q *LeaseQueue) Receive(ctx context.Context, opts queue.ReceiveOptions) ([]*queue.Message, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	waitUntil := time.Now().Add(opts.WaitTime)
	for {
		msgs, err := q.receiveOnce(ctx, opts)
		if err != nil {
			return nil, err
		}
		if len(msgs) > 0 {
			return msgs, nil
		}

		remaining := time.Until(waitUntil)
		if remaining <= 0 {
			return msgs, nil
		}

		timer := time.NewTimer(min(remaining, q.cfg.PollInterval))
		select {
		case <-ctx.Done():
			timer.Stop()
			return []*queue.Message{}, ctx.Err()
		case <-timer.C:
		}
	}
}

func (q *LeaseQueue) receiveOnce(ctx context.Context, opts queue.ReceiveOptions) ([]*queue.Message, error) {
	log := logger.FromContextOrDefault(ctx, q.logger)
	msgs := make([]*queue.Message, 0, opts.MaxMessages)

	err := store.RunInTransaction(ctx, q.db, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, reapExpiredQuery, q.cfg.Name); err != nil {
			return fmt.Errorf("failed to reap expired leases: %w", MapError(err))
		}

		res, err := tx.ExecContext(ctx, deadLetterQuery, q.cfg.Name, q.cfg.MaxReceiveCount)
		if err != nil {
			return fmt.Errorf("failed to dead-letter messages: %w", MapError(err))
		}
		if n, _ := rowsAffected(res); n > 0 {
			log.Warn("messages moved to dead-letter sink", slog.Int64("count", n))
		}

		rows, err := tx.QueryContext(ctx, leaseQuery,
			q.cfg.Name, q.cfg.MaxReceiveCount, opts.MaxMessages, opts.VisibilityTimeout.Seconds())
		if err != nil {
			return fmt.Errorf("failed to lease messages: %w", MapError(err))
		}
		defer rows.Close()

		for rows.Next() {
			var m queue.Message
			if err := rows.Scan(&m.ID, &m.ReceiptHandle, &m.Body, &m.ReceiveCount,
				&m.VisibilityDeadline, &m.EnqueuedAt); err != nil {
				return fmt.Errorf("failed to scan leased message: %w", err)
			}
			msgs = append(msgs, &m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// Delete implements queue.Queue. Deleting a message that no longer exists
// affects no rows and is not an error.
func (q *LeaseQueue) Delete(ctx context.Context, msg *queue.Message) error {
	if _, err := uuid.Parse(msg.ID); err != nil {
		return nil
	}
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM queue_messages WHERE id = $1 AND queue_name = $2`, msg.ID, q.cfg.Name)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", MapError(err))
	}
	if n, _ := rowsAffected(res); n == 0 {
		logger.FromContextOrDefault(ctx, q.logger).Debug("delete of absent message ignored",
			slog.String("message_id", msg.ID))
	}
	return nil
}

// ExtendLease implements queue.Queue.
func (q *LeaseQueue) ExtendLease(ctx context.Context, msg *queue.Message, timeout time.Duration) error {
	if timeout <= 0 {
		return fmt.Errorf("%w: lease extension must be positive", queue.ErrInvalidOptions)
	}

	var deadline time.Time
	err := q.db.QueryRowContext(ctx, `
		UPDATE queue_messages
		SET lease_deadline = NOW() + make_interval(secs => $4)
		WHERE id = $1 AND queue_name = $2 AND state = 'leased'
			AND receipt_handle = $3 AND lease_deadline > NOW()
		RETURNING lease_deadline`,
		msg.ID, q.cfg.Name, msg.ReceiptHandle, timeout.Seconds()).Scan(&deadline)
	if errors.Is(err, sql.ErrNoRows) {
		return queue.ErrLeaseLost
	}
	if err != nil {
		return fmt.Errorf("failed to extend lease: %w", MapError(err))
	}
	msg.VisibilityDeadline = deadline
	return nil
}

// NoteFailure implements queue.FailureNoter.
func (q *LeaseQueue) NoteFailure(ctx context.Context, msg *queue.Message, reason string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE queue_messages SET last_error = $3 WHERE id = $1 AND queue_name = $2`,
		msg.ID, q.cfg.Name, reason)
	if err != nil {
		return fmt.Errorf("failed to record failure: %w", MapError(err))
	}
	return nil
}

// Stats implements queue.StatsReporter. Expired leases that have not been
// reaped yet are still counted as leased.
func (q *LeaseQueue) Stats(ctx context.Context) (queue.Stats, error) {
	var s queue.Stats
	err := q.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE state = 'visible'),
			COUNT(*) FILTER (WHERE state = 'leased'),
			(SELECT COUNT(*) FROM dead_letters WHERE queue_name = $1 AND redriven_at IS NULL)
		FROM queue_messages
		WHERE queue_name = $1`, q.cfg.Name).Scan(&s.Visible, &s.Leased, &s.DeadLettered)
	if err != nil {
		return s, fmt.Errorf("failed to count messages: %w", MapError(err))
	}
	return s, nil
}
