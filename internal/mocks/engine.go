package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/imglabel/internal/domain"
	"github.com/phrazzld/imglabel/internal/vision"
)

// MockEngine implements vision.Engine for testing.
type MockEngine struct {
	// DetectLabelsFn allows test cases to mock the DetectLabels behavior
	DetectLabelsFn func(ctx context.Context, image []byte) ([]domain.Label, error)

	// Default response values
	Labels []domain.Label
	Err    error

	mu    sync.Mutex
	calls int
}

// DetectLabels implements vision.Engine.
func (m *MockEngine) DetectLabels(ctx context.Context, image []byte) ([]domain.Label, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.DetectLabelsFn != nil {
		return m.DetectLabelsFn(ctx, image)
	}
	return m.Labels, m.Err
}

// Calls returns how many times DetectLabels was called.
func (m *MockEngine) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// NewMockEngineFailingFirst returns labels after the first n calls fail with err.
func NewMockEngineFailingFirst(n int, err error, labels []domain.Label) *MockEngine {
	m := &MockEngine{}
	m.DetectLabelsFn = func(ctx context.Context, image []byte) ([]domain.Label, error) {
		if m.Calls() <= n {
			return nil, err
		}
		return labels, nil
	}
	return m
}

var _ vision.Engine = (*MockEngine)(nil)
