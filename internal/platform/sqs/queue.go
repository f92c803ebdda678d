package sqs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go"

	"github.com/phrazzld/imglabel/internal/platform/logger"
	"github.com/phrazzld/imglabel/internal/queue"
)

// SQS service limits.
const (
	maxBatch             = 10
	maxWaitSeconds       = 20
	maxVisibilitySeconds = 12 * 60 * 60
)

// Client is the subset of *sqs.Client used by Queue.
type Client interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

// Config names the queue pair.
type Config struct {
	QueueURL           string
	DeadLetterQueueURL string
	// MaxReceiveCount mirrors queue.max_receive_count. It is reported as the
	// failure count of dead letters.
	MaxReceiveCount int
	// Now is used for lease deadlines. Defaults to time.Now.
	Now func() time.Time
}

// Queue implements queue.Queue, queue.DeadLetterSink and queue.StatsReporter.
type Queue struct {
	client Client
	cfg    Config
	logger *slog.Logger
}

// New creates a Queue.
func New(client Client, cfg Config, logger *slog.Logger) (*Queue, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: sqs client is required", queue.ErrInvalidOptions)
	}
	if cfg.QueueURL == "" || cfg.DeadLetterQueueURL == "" {
		return nil, fmt.Errorf("%w: queue and dead-letter queue URLs are required", queue.ErrInvalidOptions)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		client: client,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "sqs_queue")),
	}, nil
}

var (
	_ queue.Queue          = (*Queue)(nil)
	_ queue.DeadLetterSink = (*Queue)(nil)
	_ queue.StatsReporter  = (*Queue)(nil)
)

// Enqueue implements queue.Queue.
func (q *Queue) Enqueue(ctx context.Context, body []byte) (string, error) {
	if len(body) == 0 {
		return "", queue.ErrEmptyBody
	}
	return q.send(ctx, q.cfg.QueueURL, body)
}

func (q *Queue) send(ctx context.Context, url string, body []byte) (string, error) {
	out, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(url),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

// Receive implements queue.Queue using SQS long polling.
func (q *Queue) Receive(ctx context.Context, opts queue.ReceiveOptions) ([]*queue.Message, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	visibility := seconds(opts.VisibilityTimeout, maxVisibilitySeconds)
	out, err := q.receive(ctx, q.cfg.QueueURL, int32(min(opts.MaxMessages, maxBatch)),
		seconds(opts.WaitTime, maxWaitSeconds), visibility)
	if err != nil {
		return nil, err
	}

	deadline := q.cfg.Now().Add(time.Duration(visibility) * time.Second)
	msgs := make([]*queue.Message, 0, len(out))
	for _, m := range out {
		msg := toMessage(m)
		msg.VisibilityDeadline = deadline
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (q *Queue) receive(ctx context.Context, url string, batch, wait, visibility int32) ([]types.Message, error) {
	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(url),
		MaxNumberOfMessages: batch,
		WaitTimeSeconds:     wait,
		VisibilityTimeout:   visibility,
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
			types.MessageSystemAttributeNameSentTimestamp,
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to receive messages: %w", err)
	}
	return out.Messages, nil
}

// Delete implements queue.Queue. A receipt handle SQS no longer recognizes
// means the message is already gone.
func (q *Queue) Delete(ctx context.Context, msg *queue.Message) error {
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.cfg.QueueURL),
		ReceiptHandle: aws.String(msg.ReceiptHandle),
	})
	if err != nil {
		if isLeaseGone(err) {
			logger.FromContextOrDefault(ctx, q.logger).Debug("delete of unknown receipt handle ignored",
				slog.String("message_id", msg.ID))
			return nil
		}
		return fmt.Errorf("failed to delete message %s: %w", msg.ID, err)
	}
	return nil
}

// ExtendLease implements queue.Queue.
func (q *Queue) ExtendLease(ctx context.Context, msg *queue.Message, timeout time.Duration) error {
	if timeout <= 0 {
		return fmt.Errorf("%w: lease extension must be positive", queue.ErrInvalidOptions)
	}
	visibility := seconds(timeout, maxVisibilitySeconds)
	_, err := q.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(q.cfg.QueueURL),
		ReceiptHandle:     aws.String(msg.ReceiptHandle),
		VisibilityTimeout: visibility,
	})
	if err != nil {
		if isLeaseGone(err) {
			return queue.ErrLeaseLost
		}
		return fmt.Errorf("failed to extend lease of %s: %w", msg.ID, err)
	}
	msg.VisibilityDeadline = q.cfg.Now().Add(time.Duration(visibility) * time.Second)
	return nil
}

// Stats implements queue.StatsReporter with SQS's approximate counters.
func (q *Queue) Stats(ctx context.Context) (queue.Stats, error) {
	primary, err := q.attributes(ctx, q.cfg.QueueURL,
		types.QueueAttributeNameApproximateNumberOfMessages,
		types.QueueAttributeNameApproximateNumberOfMessagesNotVisible)
	if err != nil {
		return queue.Stats{}, err
	}
	dlq, err := q.attributes(ctx, q.cfg.DeadLetterQueueURL,
		types.QueueAttributeNameApproximateNumberOfMessages)
	if err != nil {
		return queue.Stats{}, err
	}
	return queue.Stats{
		Visible:      atoi(primary[string(types.QueueAttributeNameApproximateNumberOfMessages)]),
		Leased:       atoi(primary[string(types.QueueAttributeNameApproximateNumberOfMessagesNotVisible)]),
		DeadLettered: atoi(dlq[string(types.QueueAttributeNameApproximateNumberOfMessages)]),
	}, nil
}

func (q *Queue) attributes(ctx context.Context, url string, names ...types.QueueAttributeName) (map[string]string, error) {
	out, err := q.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(url),
		AttributeNames: names,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch queue attributes: %w", err)
	}
	return out.Attributes, nil
}

func toMessage(m types.Message) *queue.Message {
	msg := &queue.Message{
		ID:            aws.ToString(m.MessageId),
		ReceiptHandle: aws.ToString(m.ReceiptHandle),
		Body:          []byte(aws.ToString(m.Body)),
	}
	if n := atoi(m.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)]); n > 1 {
		msg.ReceiveCount = n - 1
	}
	if ms, err := strconv.ParseInt(m.Attributes[string(types.MessageSystemAttributeNameSentTimestamp)], 10, 64); err == nil {
		msg.EnqueuedAt = time.UnixMilli(ms).UTC()
	}
	return msg
}

// isLeaseGone reports whether SQS rejected a receipt handle because the lease
// it names has ended.
func isLeaseGone(err error) bool {
	var notInflight *types.MessageNotInflight
	var invalid *types.ReceiptHandleIsInvalid
	if errors.As(err, &notInflight) || errors.As(err, &invalid) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "MessageNotInflight", "ReceiptHandleIsInvalid",
			"AWS.SimpleQueueService.MessageNotInflight", "AWS.SimpleQueueService.ReceiptHandleIsInvalid":
			return true
		}
	}
	return false
}

// seconds rounds d up to whole seconds within [0, limit].
func seconds(d time.Duration, limit int32) int32 {
	s := math.Ceil(d.Seconds())
	if s < 0 {
		return 0
	}
	if s > float64(limit) {
		return limit
	}
	return int32(s)
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
