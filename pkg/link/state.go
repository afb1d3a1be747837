package link

// State is the lifecycle state of a client's hub link.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "disconnected"
	}
}
