package orchestrator

// State is the lifecycle state of an analysis session.
type State int

const (
	StateIdle State = iota
	StatePriceResolved
	StateHoldersEnumerated
	StateBatching
	StateDone
	StateCancelled
	StateFailed
)

var stateNames = [...]string{
	StateIdle:              "idle",
	StatePriceResolved:     "price_resolved",
	StateHoldersEnumerated: "holders_enumerated",
	StateBatching:          "batching",
	StateDone:              "done",
	StateCancelled:         "cancelled",
	StateFailed:            "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateDone || s == StateCancelled || s == StateFailed
}
