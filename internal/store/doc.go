// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying storage mechanism from the
// pipeline's core logic. Label and thumbnail stores expose only overwrite
// and lookup by key, so repeated writes of the same input leave identical
// state behind.
package store
