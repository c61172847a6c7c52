package stream

import (
	"fmt"

	"github.com/pkg/errors"
)

// State is the lifecycle state of a Handle.
type State int

const (
	// Closed handles hold no driver stream. A handle starts Closed and returns there for good
	// once closed.
	Closed State = iota
	// Open handles hold a driver stream that is not producing frames.
	Open
	// Started handles are producing frames.
	Started
)

func (s State) String() string {
	switch s {
	case Closed:
		return "CLOSED"
	case Open:
		return "OPEN"
	case Started:
		return "STARTED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// transitions lists the states reachable from each state.
var transitions = map[State][]State{
	Closed:  {Open},
	Open:    {Started, Closed},
	Started: {Open, Closed},
}

// CanTransition reports whether a handle may move from one state to another.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to State) error {
	if CanTransition(from, to) {
		return nil
	}
	return errors.Errorf("invalid stream transition %s -> %s", from, to)
}
