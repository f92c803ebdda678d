// Package sqs adapts an Amazon SQS queue and its dead-letter queue to the
// queue.Queue and queue.DeadLetterSink contracts.
//
// SQS enforces the delivery budget itself through the main queue's redrive
// policy. That policy must be provisioned with maxReceiveCount set to the
// configured queue.max_receive_count plus one, because SQS counts the first
// delivery while queue.Message.ReceiveCount does not.
//
// SQS does not keep failure notes, so Queue does not implement
// queue.FailureNoter and dead letters carry no LastError.
package sqs
