package upload

// State is the position of one upload run.
type State int

const (
	StateIdle State = iota
	StateDeriving
	StateTransferring
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDeriving:
		return "deriving"
	case StateTransferring:
		return "transferring"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}
