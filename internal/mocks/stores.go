package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/imglabel/internal/domain"
	"github.com/phrazzld/imglabel/internal/store"
)

// MockObjectStore implements store.ObjectStore for testing.
type MockObjectStore struct {
	BucketName string
	PutFn      func(ctx context.Context, key string, data []byte, contentType string) error
	GetFn      func(ctx context.Context, key string) ([]byte, error)

	mu       sync.Mutex
	putCalls int
	getCalls int
}

// Bucket implements store.ObjectStore.
func (m *MockObjectStore) Bucket() string { return m.BucketName }

// Put implements store.ObjectStore.
func (m *MockObjectStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	m.putCalls++
	m.mu.Unlock()
	if m.PutFn != nil {
		return m.PutFn(ctx, key, data, contentType)
	}
	return nil
}

// Get implements store.ObjectStore.
func (m *MockObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	m.getCalls++
	m.mu.Unlock()
	if m.GetFn != nil {
		return m.GetFn(ctx, key)
	}
	return nil, store.ErrObjectNotFound
}

// PutCalls returns how many times Put was called.
func (m *MockObjectStore) PutCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putCalls
}

// GetCalls returns how many times Get was called.
func (m *MockObjectStore) GetCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getCalls
}

// MockLabelStore implements store.LabelStore for testing.
type MockLabelStore struct {
	PutFn func(ctx context.Context, record *domain.LabelRecord) error
	GetFn func(ctx context.Context, imageID string) (*domain.LabelRecord, error)
}

// Put implements store.LabelStore.
func (m *MockLabelStore) Put(ctx context.Context, record *domain.LabelRecord) error {
	if m.PutFn != nil {
		return m.PutFn(ctx, record)
	}
	return nil
}

// Get implements store.LabelStore.
func (m *MockLabelStore) Get(ctx context.Context, imageID string) (*domain.LabelRecord, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, imageID)
	}
	return nil, store.ErrLabelsNotFound
}

// MockThumbnailStore implements store.ThumbnailStore for testing.
type MockThumbnailStore struct {
	PutFn func(ctx context.Context, asset *domain.ThumbnailAsset) error
	GetFn func(ctx context.Context, imageID, variant string) (*domain.ThumbnailAsset, error)
}

// Put implements store.ThumbnailStore.
func (m *MockThumbnailStore) Put(ctx context.Context, asset *domain.ThumbnailAsset) error {
	if m.PutFn != nil {
		return m.PutFn(ctx, asset)
	}
	return nil
}

// Get implements store.ThumbnailStore.
func (m *MockThumbnailStore) Get(ctx context.Context, imageID, variant string) (*domain.ThumbnailAsset, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, imageID, variant)
	}
	return nil, store.ErrThumbnailNotFound
}

var (
	_ store.ObjectStore    = (*MockObjectStore)(nil)
	_ store.LabelStore     = (*MockLabelStore)(nil)
	_ store.ThumbnailStore = (*MockThumbnailStore)(nil)
)
