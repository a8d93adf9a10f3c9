package matchmaking

import "fmt"

// State is where a connection sits in the search/session lifecycle
type State int

const (
	StateIdle State = iota
	StateSearching
	StateMatched
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSearching:
		return "searching"
	case StateMatched:
		return "matched"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Matched -> Searching covers find_next before negotiation finished and the
// requeue of a survivor whose peer left mid-negotiation.
var transitions = map[State][]State{
	StateIdle:      {StateSearching},
	StateSearching: {StateMatched, StateIdle},
	StateMatched:   {StateConnected, StateSearching, StateIdle},
	StateConnected: {StateSearching, StateIdle},
}

// CanTransition reports whether from -> to is a legal step.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// InSession reports whether the state implies a live session.
func (s State) InSession() bool {
	return s == StateMatched || s == StateConnected
}
