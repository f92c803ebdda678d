// Package queue defines the lease queue contract that decouples uploads from
// label extraction, the state machine every implementation follows, and an
// in-memory implementation of both the queue and its dead-letter sink.
//
// A message is Visible until a consumer receives it, which leases it for the
// visibility timeout. A leased message is either deleted by the consumer or,
// once the lease deadline passes, counted as a failed delivery. Failed
// deliveries return the message to Visible until the count exceeds the
// configured maximum, at which point the message moves to the dead-letter
// sink in the same step that removes it from the queue.
package queue
