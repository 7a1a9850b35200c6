package harness

import "fmt"

// State is a harness lifecycle state.
type State int

const (
	Idle State = iota
	Running
	AwaitingCompletion
	Aggregating
	Reported
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case AwaitingCompletion:
		return "awaiting_completion"
	case Aggregating:
		return "aggregating"
	case Reported:
		return "reported"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Reported || s == Failed
}

var transitions = map[State][]State{
	Idle:               {Running, Failed},
	Running:            {AwaitingCompletion},
	AwaitingCompletion: {Aggregating},
	Aggregating:        {Reported},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
