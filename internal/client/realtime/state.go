package realtime

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateSubscribed
	StateReconnecting
	StateDegraded
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateReconnecting:
		return "reconnecting"
	case StateDegraded:
		return "degraded"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Online reports whether notifications are currently being received.
func (s State) Online() bool {
	return s == StateSubscribed
}
