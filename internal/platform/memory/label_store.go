package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/phrazzld/imglabel/internal/domain"
	"github.com/phrazzld/imglabel/internal/store"
)

// LabelStore implements store.LabelStore.
type LabelStore struct {
	mu      sync.RWMutex
	records map[string]domain.LabelRecord
}

// NewLabelStore creates an empty LabelStore.
func NewLabelStore() *LabelStore {
	return &LabelStore{records: make(map[string]domain.LabelRecord)}
}

var _ store.LabelStore = (*LabelStore)(nil)

// Put implements store.LabelStore.
func (s *LabelStore) Put(_ context.Context, record *domain.LabelRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.records[record.ImageID]; ok && cur.ExtractedAt.After(record.ExtractedAt) {
		return nil
	}
	s.records[record.ImageID] = copyRecord(record)
	return nil
}

// Get implements store.LabelStore.
func (s *LabelStore) Get(_ context.Context, imageID string) (*domain.LabelRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[imageID]
	if !ok {
		return nil, store.ErrLabelsNotFound
	}
	out := copyRecord(&rec)
	return &out, nil
}

// Len returns the number of stored records.
func (s *LabelStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func copyRecord(r *domain.LabelRecord) domain.LabelRecord {
	out := *r
	out.Labels = append([]domain.Label{}, r.Labels...)
	return out
}
