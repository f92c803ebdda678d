package store

import "context"

// ObjectStore is a blob store bound to a single bucket.
// Version: 1.0
type ObjectStore interface {
	// Bucket returns the name of the bucket this store reads and writes.
	Bucket() string

	// Put writes data under key, replacing any existing object.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Get reads the object stored under key.
	// Returns ErrObjectNotFound if the object is absent or permanently
	// unreadable. Any other error may clear up on retry.
	Get(ctx context.Context, key string) ([]byte, error)
}
