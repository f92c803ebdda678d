// Package worker implements the extraction worker: it leases notifications
// from the queue, labels and resizes the referenced image, stores the results
// and acknowledges the message.
//
// The worker never retries on its own. A transient failure leaves the message
// leased, the lease expires, and the queue redelivers it or dead-letters it
// once the delivery budget is spent. Every write is an idempotent overwrite
// keyed by image, so a redelivery after a partial run converges on the same
// stored state.
package worker
