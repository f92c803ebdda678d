package queue

import (
	"context"
	"fmt"
	"time"
)

// Message is a leased queue message. It is owned by the queue; consumers
// only hand it back to Delete or ExtendLease.
type Message struct {
	ID string
	// ReceiptHandle identifies this particular lease.
	ReceiptHandle string
	Body          []byte
	// ReceiveCount is the number of earlier deliveries that ended without a
	// delete. It is zero on the first delivery.
	ReceiveCount       int
	VisibilityDeadline time.Time
	EnqueuedAt         time.Time
}

// Attempt returns the 1-based delivery attempt this lease represents.
func (m *Message) Attempt() int {
	return m.ReceiveCount + 1
}

// ReceiveOptions controls a single Receive call.
type ReceiveOptions struct {
	// WaitTime bounds how long Receive blocks when no message is visible.
	// Zero returns immediately.
	WaitTime time.Duration
	// VisibilityTimeout is the lease length granted to each returned message.
	VisibilityTimeout time.Duration
	// MaxMessages caps the number of messages returned. Zero means one.
	MaxMessages int
}

// Validate checks the options and fills in defaults.
func (o *ReceiveOptions) Validate() error {
	if o.WaitTime < 0 {
		return fmt.Errorf("%w: negative wait time", ErrInvalidOptions)
	}
	if o.VisibilityTimeout <= 0 {
		return fmt.Errorf("%w: visibility timeout must be positive", ErrInvalidOptions)
	}
	if o.MaxMessages < 0 {
		return fmt.Errorf("%w: negative max messages", ErrInvalidOptions)
	}
	if o.MaxMessages == 0 {
		o.MaxMessages = 1
	}
	return nil
}

// Queue is an at-least-once message buffer with per-message leases.
// Version: 1.0
type Queue interface {
	// Enqueue adds a visible message and returns its ID.
	Enqueue(ctx context.Context, body []byte) (string, error)

	// Receive leases up to opts.MaxMessages visible messages. When none is
	// visible it blocks for up to opts.WaitTime and returns an empty slice if
	// nothing arrives. No visible message is returned to two concurrent callers.
	Receive(ctx context.Context, opts ReceiveOptions) ([]*Message, error)

	// Delete removes the message permanently. Deleting a message that is
	// already deleted or dead-lettered succeeds without effect.
	Delete(ctx context.Context, msg *Message) error

	// ExtendLease pushes the message's visibility deadline to now+timeout.
	// Returns ErrLeaseLost if the caller's lease is no longer current.
	ExtendLease(ctx context.Context, msg *Message, timeout time.Duration) error
}

// DeadLetter is a message that exhausted its delivery budget.
type DeadLetter struct {
	ID string
	// Message is the original message as it stood when it was moved.
	Message Message
	// FailureCount is the message's final receive count.
	FailureCount int
	LastError    string
	MovedAt      time.Time
	// RedrivenAt is set once an operator has sent the message back to the queue.
	RedrivenAt *time.Time
}

// DefaultDeadLetterLimit is used by ListDeadLetters when limit <= 0.
const DefaultDeadLetterLimit = 100

// DeadLetterSink exposes dead-lettered messages to operators. The extraction
// worker never reads from it.
// Version: 1.0
type DeadLetterSink interface {
	// ListDeadLetters returns up to limit entries, oldest first. A limit <= 0
	// means DefaultDeadLetterLimit.
	ListDeadLetters(ctx context.Context, limit int) ([]*DeadLetter, error)

	// GetDeadLetter returns a single entry.
	// Returns store.ErrDeadLetterNotFound if it does not exist.
	GetDeadLetter(ctx context.Context, id string) (*DeadLetter, error)

	// Redrive enqueues the entry's original body as a fresh message and
	// records when that happened.
	Redrive(ctx context.Context, id string) (string, error)
}

// FailureNoter is implemented by queues that can remember why a delivery
// failed. The note becomes DeadLetter.LastError if the message is later
// dead-lettered. It never changes the message's lease or receive count.
type FailureNoter interface {
	NoteFailure(ctx context.Context, msg *Message, reason string) error
}

// Stats is a point-in-time count of messages by state.
type Stats struct {
	Visible      int
	Leased       int
	DeadLettered int
}

// StatsReporter is implemented by queues that can count their messages.
type StatsReporter interface {
	Stats(ctx context.Context) (Stats, error)
}
