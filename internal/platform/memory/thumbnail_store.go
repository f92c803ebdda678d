package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/phrazzld/imglabel/internal/domain"
	"github.com/phrazzld/imglabel/internal/store"
)

type thumbnailKey struct {
	imageID string
	variant string
}

// ThumbnailStore implements store.ThumbnailStore.
type ThumbnailStore struct {
	mu     sync.RWMutex
	assets map[thumbnailKey]domain.ThumbnailAsset
}

// NewThumbnailStore creates an empty ThumbnailStore.
func NewThumbnailStore() *ThumbnailStore {
	return &ThumbnailStore{assets: make(map[thumbnailKey]domain.ThumbnailAsset)}
}

var _ store.ThumbnailStore = (*ThumbnailStore)(nil)

// Put implements store.ThumbnailStore.
func (s *ThumbnailStore) Put(_ context.Context, asset *domain.ThumbnailAsset) error {
	if err := asset.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	s.mu.Lock()
	s.assets[thumbnailKey{asset.ImageID, asset.Variant}] = *asset
	s.mu.Unlock()
	return nil
}

// Get implements store.ThumbnailStore.
func (s *ThumbnailStore) Get(_ context.Context, imageID, variant string) (*domain.ThumbnailAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	asset, ok := s.assets[thumbnailKey{imageID, variant}]
	if !ok {
		return nil, store.ErrThumbnailNotFound
	}
	return &asset, nil
}

// Len returns the number of stored assets.
func (s *ThumbnailStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.assets)
}
