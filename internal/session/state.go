package session

// State is a session's lifecycle stage (spec.md §4.5): every session
// flavor moves through the same skeleton, though not every flavor
// uses every state (the scaler/uploader/AI sessions never Drain).
type State int

const (
	StateOpened State = iota
	StateConfigured
	StateStreaming
	StateDraining
	StateFlushed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpened:
		return "opened"
	case StateConfigured:
		return "configured"
	case StateStreaming:
		return "streaming"
	case StateDraining:
		return "draining"
	case StateFlushed:
		return "flushed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
