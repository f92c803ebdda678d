package queue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/xid"

	"github.com/phrazzld/imglabel/internal/store"
)

// MemoryQueueConfig contains configuration for MemoryQueue.
type MemoryQueueConfig struct {
	// MaxReceiveCount is the number of failed deliveries tolerated before a
	// message is dead-lettered.
	MaxReceiveCount int
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

type memoryEntry struct {
	id           string
	body         []byte
	seq          uint64
	enqueuedAt   time.Time
	state        State
	receiveCount int
	receipt      string
	deadline     time.Time
	lastError    string
}

// MemoryQueue is a process-local Queue and DeadLetterSink. Lease expiry is
// applied lazily whenever the queue is inspected, so it behaves identically
// under a real or a fake clock.
type MemoryQueue struct {
	mu              sync.Mutex
	maxReceiveCount int
	now             func() time.Time
	seq             uint64
	live            map[string]*memoryEntry
	deadLetters     []*DeadLetter
	// wake is closed and replaced whenever a message becomes visible.
	wake chan struct{}
}

// NewMemoryQueue creates an empty MemoryQueue.
func NewMemoryQueue(cfg MemoryQueueConfig) *MemoryQueue {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxReceiveCount < 0 {
		cfg.MaxReceiveCount = 0
	}
	return &MemoryQueue{
		maxReceiveCount: cfg.MaxReceiveCount,
		now:             cfg.Now,
		live:            make(map[string]*memoryEntry),
		wake:            make(chan struct{}),
	}
}

// Enqueue implements Queue.
func (q *MemoryQueue) Enqueue(_ context.Context, body []byte) (string, error) {
	if len(body) == 0 {
		return "", ErrEmptyBody
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	id := q.enqueueLocked(body)
	return id, nil
}

func (q *MemoryQueue) enqueueLocked(body []byte) string {
	q.seq++
	e := &memoryEntry{
		id:         uuid.NewString(),
		body:       append([]byte(nil), body...),
		seq:        q.seq,
		enqueuedAt: q.now(),
		state:      StateVisible,
	}
	q.live[e.id] = e
	q.signalLocked()
	return e.id
}

func (q *MemoryQueue) signalLocked() {
	close(q.wake)
	q.wake = make(chan struct{})
}

// Receive implements Queue. The long-poll wait is measured in wall-clock time
// even when a custom Now is configured.
func (q *MemoryQueue) Receive(ctx context.Context, opts ReceiveOptions) ([]*Message, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	waitUntil := time.Now().Add(opts.WaitTime)
	for {
		q.mu.Lock()
		msgs := q.leaseLocked(opts)
		wake := q.wake
		untilExpiry := q.untilNextExpiryLocked()
		q.mu.Unlock()

		if len(msgs) > 0 {
			return msgs, nil
		}

		remaining := time.Until(waitUntil)
		if remaining <= 0 {
			return []*Message{}, nil
		}
		if untilExpiry > 0 && untilExpiry < remaining {
			remaining = untilExpiry
		}

		timer := time.NewTimer(max(remaining, time.Millisecond))
		select {
		case <-ctx.Done():
			timer.Stop()
			return []*Message{}, ctx.Err()
		case <-wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// leaseLocked reaps expired leases and leases visible messages in enqueue order.
func (q *MemoryQueue) leaseLocked(opts ReceiveOptions) []*Message {
	now := q.now()
	q.reapLocked(now)

	visible := make([]*memoryEntry, 0, len(q.live))
	for _, e := range q.live {
		if e.state == StateVisible {
			visible = append(visible, e)
		}
	}
	sort.Slice(visible, func(i, j int) bool { return visible[i].seq < visible[j].seq })
	if len(visible) > opts.MaxMessages {
		visible = visible[:opts.MaxMessages]
	}

	msgs := make([]*Message, 0, len(visible))
	for _, e := range visible {
		t, err := Next(e.state, EventReceive, e.receiveCount, q.maxReceiveCount)
		if err != nil {
			continue
		}
		e.state = t.To
		e.receipt = xid.New().String()
		e.deadline = now.Add(opts.VisibilityTimeout)
		msgs = append(msgs, e.message())
	}
	return msgs
}

// reapLocked expires every lease whose deadline has passed.
func (q *MemoryQueue) reapLocked(now time.Time) {
	for id, e := range q.live {
		if e.state != StateLeased || e.deadline.After(now) {
			continue
		}

		t, err := Next(e.state, EventLeaseExpired, e.receiveCount, q.maxReceiveCount)
		if err != nil {
			continue
		}
		e.receiveCount = t.ReceiveCount
		e.receipt = ""
		e.deadline = time.Time{}

		if t.To == StateDeadLettered {
			delete(q.live, id)
			snapshot := e.message()
			q.deadLetters = append(q.deadLetters, &DeadLetter{
				ID:           uuid.NewString(),
				Message:      *snapshot,
				FailureCount: t.ReceiveCount,
				LastError:    e.lastError,
				MovedAt:      now,
			})
			continue
		}
		e.state = t.To
		q.signalLocked()
	}
}

func (q *MemoryQueue) untilNextExpiryLocked() time.Duration {
	now := q.now()
	var next time.Duration
	for _, e := range q.live {
		if e.state != StateLeased {
			continue
		}
		if d := e.deadline.Sub(now); next == 0 || d < next {
			next = d
		}
	}
	return next
}

func (e *memoryEntry) message() *Message {
	return &Message{
		ID:                 e.id,
		ReceiptHandle:      e.receipt,
		Body:               append([]byte(nil), e.body...),
		ReceiveCount:       e.receiveCount,
		VisibilityDeadline: e.deadline,
		EnqueuedAt:         e.enqueuedAt,
	}
}

// Delete implements Queue.
func (q *MemoryQueue) Delete(_ context.Context, msg *Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.live[msg.ID]
	if !ok {
		return nil
	}
	t, err := Next(e.state, EventDelete, e.receiveCount, q.maxReceiveCount)
	if err != nil {
		return err
	}
	if t.To == StateDeleted {
		delete(q.live, msg.ID)
	}
	return nil
}

// ExtendLease implements Queue.
func (q *MemoryQueue) ExtendLease(_ context.Context, msg *Message, timeout time.Duration) error {
	if timeout <= 0 {
		return fmt.Errorf("%w: lease extension must be positive", ErrInvalidOptions)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	q.reapLocked(now)

	e, ok := q.live[msg.ID]
	if !ok || e.state != StateLeased || e.receipt != msg.ReceiptHandle {
		return ErrLeaseLost
	}
	e.deadline = now.Add(timeout)
	msg.VisibilityDeadline = e.deadline
	return nil
}

// NoteFailure implements FailureNoter.
func (q *MemoryQueue) NoteFailure(_ context.Context, msg *Message, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if e, ok := q.live[msg.ID]; ok {
		e.lastError = reason
	}
	return nil
}

// Stats implements StatsReporter.
func (q *MemoryQueue) Stats(_ context.Context) (Stats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.reapLocked(q.now())

	var s Stats
	for _, e := range q.live {
		switch e.state {
		case StateVisible:
			s.Visible++
		case StateLeased:
			s.Leased++
		}
	}
	for _, d := range q.deadLetters {
		if d.RedrivenAt == nil {
			s.DeadLettered++
		}
	}
	return s, nil
}

// ListDeadLetters implements DeadLetterSink.
func (q *MemoryQueue) ListDeadLetters(_ context.Context, limit int) ([]*DeadLetter, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.reapLocked(q.now())

	if limit <= 0 {
		limit = DefaultDeadLetterLimit
	}
	n := min(len(q.deadLetters), limit)
	out := make([]*DeadLetter, 0, n)
	for _, dl := range q.deadLetters[:n] {
		cp := *dl
		out = append(out, &cp)
	}
	return out, nil
}

// GetDeadLetter implements DeadLetterSink.
func (q *MemoryQueue) GetDeadLetter(_ context.Context, id string) (*DeadLetter, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.reapLocked(q.now())

	for _, dl := range q.deadLetters {
		if dl.ID == id {
			cp := *dl
			return &cp, nil
		}
	}
	return nil, store.ErrDeadLetterNotFound
}

// Redrive implements DeadLetterSink.
func (q *MemoryQueue) Redrive(_ context.Context, id string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, dl := range q.deadLetters {
		if dl.ID != id {
			continue
		}
		if dl.RedrivenAt != nil {
			return "", ErrAlreadyRedriven
		}
		if _, err := Next(StateDeadLettered, EventRedrive, dl.FailureCount, q.maxReceiveCount); err != nil {
			return "", err
		}
		now := q.now()
		dl.RedrivenAt = &now
		return q.enqueueLocked(dl.Message.Body), nil
	}
	return "", store.ErrDeadLetterNotFound
}

var (
	_ Queue          = (*MemoryQueue)(nil)
	_ DeadLetterSink = (*MemoryQueue)(nil)
	_ FailureNoter   = (*MemoryQueue)(nil)
	_ StatsReporter  = (*MemoryQueue)(nil)
)
