// Package service contains the synchronous use cases of the image pipeline:
// accepting uploads and answering queries about extraction results.
//
// The service layer depends on domain entities and the store interfaces, never
// on a specific backend. It does not talk to the queue directly; uploads reach
// the pipeline through the object store's creation notifications.
//
// Missing results are reported with errors wrapping store.ErrNotFound, which
// callers treat as an ordinary "not yet available" answer.
package service
