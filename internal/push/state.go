// Package push keeps a STOMP-over-websocket connection to the notification
// broker alive and routes pushed notifications to the store.
package push

// State is the connection state owned by the Manager.
type State string

const (
	StateDisconnected State = "DISCONNECTED"
	StateConnecting   State = "CONNECTING"
	StateConnected    State = "CONNECTED"
	// StateError is transient and always followed by a reconnect unless stopping.
	StateError State = "ERROR"
)

// String implements fmt.Stringer.
func (s State) String() string {
	return string(s)
}

// IsConnected reports whether s is StateConnected.
func (s State) IsConnected() bool {
	return s == StateConnected
}
