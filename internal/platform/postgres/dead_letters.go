package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/phrazzld/imglabel/internal/platform/logger"
	"github.com/phrazzld/imglabel/internal/queue"
	"github.com/phrazzld/imglabel/internal/store"
)

const deadLetterColumns = `id, message_id, body, failure_count, COALESCE(last_error, ''), enqueued_at, moved_at, redriven_at`

func scanDeadLetter(row interface{ Scan(...any) error }) (*queue.DeadLetter, error) {
	var (
		dl         queue.DeadLetter
		redrivenAt sql.NullTime
	)
	err := row.Scan(&dl.ID, &dl.Message.ID, &dl.Message.Body, &dl.FailureCount,
		&dl.LastError, &dl.Message.EnqueuedAt, &dl.MovedAt, &redrivenAt)
	if err != nil {
		return nil, err
	}
	dl.Message.ReceiveCount = dl.FailureCount
	if redrivenAt.Valid {
		t := redrivenAt.Time
		dl.RedrivenAt = &t
	}
	return &dl, nil
}

// ListDeadLetters implements queue.DeadLetterSink.
func (q *LeaseQueue) ListDeadLetters(ctx context.Context, limit int) ([]*queue.DeadLetter, error) {
	if limit <= 0 {
		limit = queue.DefaultDeadLetterLimit
	}

	rows, err := q.db.QueryContext(ctx,
		`SELECT `+deadLetterColumns+` FROM dead_letters
		WHERE queue_name = $1
		ORDER BY moved_at, id
		LIMIT $2`, q.cfg.Name, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", MapError(err))
	}
	defer rows.Close()

	out := make([]*queue.DeadLetter, 0)
	for rows.Next() {
		dl, err := scanDeadLetter(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dead letter: %w", err)
		}
		out = append(out, dl)
	}
	return out, rows.Err()
}

// GetDeadLetter implements queue.DeadLetterSink.
func (q *LeaseQueue) GetDeadLetter(ctx context.Context, id string) (*queue.DeadLetter, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, store.ErrDeadLetterNotFound
	}

	row := q.db.QueryRowContext(ctx,
		`SELECT `+deadLetterColumns+` FROM dead_letters WHERE id = $1 AND queue_name = $2`,
		id, q.cfg.Name)
	dl, err := scanDeadLetter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrDeadLetterNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dead letter: %w", MapError(err))
	}
	return dl, nil
}

// Redrive implements queue.DeadLetterSink. The entry stays in dead_letters
// with redriven_at set.
func (q *LeaseQueue) Redrive(ctx context.Context, id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", store.ErrDeadLetterNotFound
	}

	newID := uuid.New()
	err := store.RunInTransaction(ctx, q.db, func(ctx context.Context, tx *sql.Tx) error {
		dl, err := scanDeadLetter(tx.QueryRowContext(ctx,
			`SELECT `+deadLetterColumns+` FROM dead_letters WHERE id = $1 AND queue_name = $2 FOR UPDATE`,
			id, q.cfg.Name))
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrDeadLetterNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load dead letter: %w", MapError(err))
		}
		if dl.RedrivenAt != nil {
			return queue.ErrAlreadyRedriven
		}
		if _, err := queue.Next(queue.StateDeadLettered, queue.EventRedrive, dl.FailureCount, q.cfg.MaxReceiveCount); err != nil {
			return err
		}

		if err := q.insert(ctx, tx, newID, dl.Message.Body); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE dead_letters SET redriven_at = NOW() WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to mark dead letter redriven: %w", MapError(err))
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	logger.FromContextOrDefault(ctx, q.logger).Info("dead letter redriven",
		slog.String("dead_letter_id", id),
		slog.String("message_id", newID.String()))
	return newID.String(), nil
}
