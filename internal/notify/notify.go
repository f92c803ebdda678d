// Package notify turns object creation into queue messages for object stores
// that cannot deliver creation events themselves.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/phrazzld/imglabel/internal/domain"
	"github.com/phrazzld/imglabel/internal/platform/logger"
	"github.com/phrazzld/imglabel/internal/store"
)

// SuffixFilter selects object keys by suffix. Matching is case-sensitive, as
// with S3 event filters.
type SuffixFilter []string

// Accepts reports whether key ends with one of the suffixes.
func (f SuffixFilter) Accepts(key string) bool {
	for _, s := range f {
		if strings.HasSuffix(key, s) {
			return true
		}
	}
	return false
}

// Enqueuer is the part of queue.Queue the emitter needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, body []byte) (string, error)
}

// NotifyingObjectStore decorates a store.ObjectStore. After a successful Put
// of a key accepted by the filter it enqueues one Notification.
type NotifyingObjectStore struct {
	store.ObjectStore
	queue  Enqueuer
	filter SuffixFilter
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a NotifyingObjectStore.
type Option func(*NotifyingObjectStore)

// WithClock overrides the source of event times.
func WithClock(now func() time.Time) Option {
	return func(s *NotifyingObjectStore) { s.now = now }
}

// NewNotifyingObjectStore wraps next.
func NewNotifyingObjectStore(next store.ObjectStore, q Enqueuer, filter SuffixFilter,
	logger *slog.Logger, opts ...Option) *NotifyingObjectStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &NotifyingObjectStore{
		ObjectStore: next,
		queue:       q,
		filter:      filter,
		now:         time.Now,
		logger:      logger.With(slog.String("component", "notifier")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ store.ObjectStore = (*NotifyingObjectStore)(nil)

// Put implements store.ObjectStore. The object is written before the
// notification is sent, so a worker never sees a notification for an object
// that does not exist yet. If the enqueue fails the object stays written and
// the error is returned; repeating the upload is safe.
func (s *NotifyingObjectStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := s.ObjectStore.Put(ctx, key, data, contentType); err != nil {
		return err
	}
	if !s.filter.Accepts(key) {
		return nil
	}

	n, err := domain.NewNotification(s.Bucket(), key, s.now())
	if err != nil {
		return fmt.Errorf("failed to build notification for %s: %w", key, err)
	}
	body, err := n.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode notification for %s: %w", key, err)
	}

	id, err := s.queue.Enqueue(ctx, body)
	if err != nil {
		return fmt.Errorf("failed to enqueue notification for %s: %w", key, err)
	}

	logger.FromContextOrDefault(ctx, s.logger).Debug("object creation notified",
		slog.String("object_key", key),
		slog.String("message_id", id))
	return nil
}
