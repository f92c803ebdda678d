package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/phrazzld/imglabel/internal/store"
)

// Object is a stored blob with its content type.
type Object struct {
	Data        []byte
	ContentType string
}

// ObjectStore implements store.ObjectStore for one named bucket.
type ObjectStore struct {
	bucket string

	mu      sync.RWMutex
	objects map[string]Object
}

// NewObjectStore creates an empty bucket.
func NewObjectStore(bucket string) *ObjectStore {
	return &ObjectStore{bucket: bucket, objects: make(map[string]Object)}
}

var _ store.ObjectStore = (*ObjectStore)(nil)

// Bucket implements store.ObjectStore.
func (s *ObjectStore) Bucket() string { return s.bucket }

// Put implements store.ObjectStore.
func (s *ObjectStore) Put(_ context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	s.objects[key] = Object{Data: append([]byte(nil), data...), ContentType: contentType}
	s.mu.Unlock()
	return nil
}

// Get implements store.ObjectStore.
func (s *ObjectStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, store.ErrObjectNotFound
	}
	return append([]byte(nil), obj.Data...), nil
}

// Object returns the stored object and its content type.
func (s *ObjectStore) Object(key string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return Object{}, false
	}
	obj.Data = append([]byte(nil), obj.Data...)
	return obj, true
}

// Keys returns every stored key in sorted order.
func (s *ObjectStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
