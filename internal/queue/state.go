package queue

import "fmt"

// State is the lifecycle state of a queued message.
type State string

// Possible message states.
const (
	StateVisible      State = "visible"
	StateLeased       State = "leased"
	StateDeleted      State = "deleted"
	StateDeadLettered State = "dead_lettered"
)

// Event is something that happens to a message and may change its state.
type Event string

// Events that drive the state machine.
const (
	EventReceive      Event = "receive"
	EventDelete       Event = "delete"
	EventLeaseExpired Event = "lease_expired"
	EventRedrive      Event = "redrive"
)

// Terminal reports whether no further event can change the state.
func (s State) Terminal() bool {
	return s == StateDeleted || s == StateDeadLettered
}

// Transition is the result of applying an event to a message.
type Transition struct {
	From         State
	To           State
	ReceiveCount int
}

// Next applies ev to a message in state s that has already failed
// receiveCount deliveries. maxReceiveCount is the number of failed deliveries
// tolerated before the message is dead-lettered.
//
// Deleting a message that is already deleted or dead-lettered is a no-op and
// yields the unchanged state.
func Next(s State, ev Event, receiveCount, maxReceiveCount int) (Transition, error) {
	t := Transition{From: s, To: s, ReceiveCount: receiveCount}

	switch ev {
	case EventReceive:
		if s != StateVisible {
			return t, fmt.Errorf("%w: cannot receive a %s message", ErrInvalidTransition, s)
		}
		t.To = StateLeased

	case EventDelete:
		if !s.Terminal() {
			t.To = StateDeleted
		}

	case EventLeaseExpired:
		if s != StateLeased {
			return t, fmt.Errorf("%w: lease cannot expire on a %s message", ErrInvalidTransition, s)
		}
		t.ReceiveCount = receiveCount + 1
		if t.ReceiveCount > maxReceiveCount {
			t.To = StateDeadLettered
		} else {
			t.To = StateVisible
		}

	case EventRedrive:
		if s != StateDeadLettered {
			return t, fmt.Errorf("%w: cannot redrive a %s message", ErrInvalidTransition, s)
		}
		t.To = StateVisible
		t.ReceiveCount = 0

	default:
		return t, fmt.Errorf("%w: unknown event %q", ErrInvalidTransition, ev)
	}

	return t, nil
}
