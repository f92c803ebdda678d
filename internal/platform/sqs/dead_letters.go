package sqs

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/phrazzld/imglabel/internal/platform/logger"
	"github.com/phrazzld/imglabel/internal/queue"
	"github.com/phrazzld/imglabel/internal/store"
)

const (
	// scanLimit bounds how many dead-letter messages a lookup by ID inspects.
	scanLimit = 1000
	// redriveVisibility is the lease, in seconds, taken on dead letters while
	// Redrive looks for its target.
	redriveVisibility = 30
)

// ListDeadLetters implements queue.DeadLetterSink. Messages are peeked with a
// zero visibility timeout so they stay available to other readers. SQS
// returns them in no particular order.
func (q *Queue) ListDeadLetters(ctx context.Context, limit int) ([]*queue.DeadLetter, error) {
	if limit <= 0 {
		limit = queue.DefaultDeadLetterLimit
	}
	out := make([]*queue.DeadLetter, 0, limit)
	_, err := q.scanDeadLetters(ctx, 0, limit, func(m types.Message) bool {
		out = append(out, q.toDeadLetter(m))
		return len(out) >= limit
	})
	return out, err
}

// GetDeadLetter implements queue.DeadLetterSink.
func (q *Queue) GetDeadLetter(ctx context.Context, id string) (*queue.DeadLetter, error) {
	var found *queue.DeadLetter
	_, err := q.scanDeadLetters(ctx, 0, scanLimit, func(m types.Message) bool {
		if aws.ToString(m.MessageId) == id {
			found = q.toDeadLetter(m)
			return true
		}
		return false
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, store.ErrDeadLetterNotFound
	}
	return found, nil
}

// Redrive implements queue.DeadLetterSink. The body is sent to the main queue
// as a new message and the dead letter is deleted. A redriven message is
// therefore no longer listed. Every other dead letter read during the search
// is made visible again straight away.
func (q *Queue) Redrive(ctx context.Context, id string) (string, error) {
	var target *types.Message
	var others []types.Message
	// The scan leases what it reads so the target's receipt handle stays
	// valid for the delete.
	unvisited, err := q.scanDeadLetters(ctx, redriveVisibility, scanLimit, func(m types.Message) bool {
		if aws.ToString(m.MessageId) == id {
			target = &m
			return true
		}
		others = append(others, m)
		return false
	})
	q.release(ctx, append(others, unvisited...))
	if err != nil {
		return "", err
	}
	if target == nil {
		return "", store.ErrDeadLetterNotFound
	}

	newID, err := q.send(ctx, q.cfg.QueueURL, []byte(aws.ToString(target.Body)))
	if err != nil {
		q.release(ctx, []types.Message{*target})
		return "", err
	}
	if _, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.cfg.DeadLetterQueueURL),
		ReceiptHandle: target.ReceiptHandle,
	}); err != nil {
		// The message is back on the main queue; a leftover dead letter is
		// only a duplicate.
		logger.FromContextOrDefault(ctx, q.logger).Warn("failed to delete redriven dead letter",
			slog.String("dead_letter_id", id),
			slog.String("error", err.Error()))
	}
	return newID, nil
}

// scanDeadLetters reads the dead-letter queue in batches until visit returns
// true, the queue returns nothing, or limit messages have been seen.
// Duplicate deliveries within one scan are not visited. They are returned
// together with the rest of the batch left unvisited after a match, since a
// non-zero visibility leases those too.
func (q *Queue) scanDeadLetters(ctx context.Context, visibility int32, limit int, visit func(types.Message) bool) ([]types.Message, error) {
	var unvisited []types.Message
	seen := make(map[string]struct{})
	for len(seen) < limit {
		batch, err := q.receive(ctx, q.cfg.DeadLetterQueueURL, maxBatch, 0, visibility)
		if err != nil {
			return unvisited, err
		}
		fresh := 0
		for i, m := range batch {
			id := aws.ToString(m.MessageId)
			if _, dup := seen[id]; dup {
				unvisited = append(unvisited, m)
				continue
			}
			seen[id] = struct{}{}
			fresh++
			if visit(m) {
				return append(unvisited, batch[i+1:]...), nil
			}
		}
		if fresh == 0 {
			return unvisited, nil
		}
	}
	return unvisited, nil
}

// release makes leased dead letters visible again. Failures are logged; the
// lease lapses on its own.
func (q *Queue) release(ctx context.Context, msgs []types.Message) {
	for _, m := range msgs {
		_, err := q.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
			QueueUrl:          aws.String(q.cfg.DeadLetterQueueURL),
			ReceiptHandle:     m.ReceiptHandle,
			VisibilityTimeout: 0,
		})
		if err != nil && !isLeaseGone(err) {
			logger.FromContextOrDefault(ctx, q.logger).Warn("failed to release dead letter",
				slog.String("dead_letter_id", aws.ToString(m.MessageId)),
				slog.String("error", err.Error()))
		}
	}
}

// toDeadLetter converts a DLQ message. SQS does not record when a message was
// moved, so MovedAt is the original send time.
func (q *Queue) toDeadLetter(m types.Message) *queue.DeadLetter {
	msg := toMessage(m)
	msg.ReceiptHandle = ""
	return &queue.DeadLetter{
		ID:           msg.ID,
		Message:      *msg,
		FailureCount: q.cfg.MaxReceiveCount + 1,
		MovedAt:      msg.EnqueuedAt,
	}
}
