package connection

// Status is the connection lifecycle state. Exactly one Status is current
// per Manager; transitions are published on the Manager's status feed.
//
// Reconnecting is only ever entered from Connected (a dropped live
// session). A first-time attempt that fails goes back to Disconnected.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}
