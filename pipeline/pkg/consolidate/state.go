package consolidate

import "fmt"

// State is the lifecycle stage of a chunk.
type State int

const (
	StateReceived State = iota
	StateElectionsPartitioned
	StateDimensionsResolved
	StateAggregated
	StateLoaded
	StateFailed
)

var stateNames = map[State]string{
	StateReceived:             "received",
	StateElectionsPartitioned: "elections_partitioned",
	StateDimensionsResolved:   "dimensions_resolved",
	StateAggregated:           "aggregated",
	StateLoaded:               "loaded",
	StateFailed:               "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) Terminal() bool {
	return s == StateLoaded || s == StateFailed
}

var transitions = map[State]State{
	StateReceived:             StateElectionsPartitioned,
	StateElectionsPartitioned: StateDimensionsResolved,
	StateDimensionsResolved:   StateAggregated,
	StateAggregated:           StateLoaded,
}

// CanTransition reports whether a chunk may move from one state to another:
// forward one step, or to Failed from any non-terminal state.
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	next, ok := transitions[from]
	return ok && next == to
}
