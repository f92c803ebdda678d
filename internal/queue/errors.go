package queue

import "errors"

var (
	// ErrInvalidTransition is returned when an event does not apply to a
	// message's current state.
	ErrInvalidTransition = errors.New("invalid queue state transition")

	// ErrLeaseLost is returned when extending a lease the caller no longer
	// holds, either because it expired or the message was deleted.
	ErrLeaseLost = errors.New("lease no longer held")

	// ErrEmptyBody is returned when enqueueing a message without a body.
	ErrEmptyBody = errors.New("message body cannot be empty")

	// ErrInvalidOptions is returned when receive options are out of range.
	ErrInvalidOptions = errors.New("invalid receive options")
)

// ErrAlreadyRedriven is returned when redriving a dead letter twice.
var ErrAlreadyRedriven = errors.New("dead letter already redriven")
