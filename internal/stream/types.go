package stream

// ConnectionState tracks the client's connection to the telemetry server.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
)

// ClientStats contains client statistics.
type ClientStats struct {
	State      ConnectionState `json:"state"`
	Reconnects uint64          `json:"reconnects"`
	Received   uint64          `json:"received"`
	Malformed  uint64          `json:"malformed"`
	Dropped    uint64          `json:"dropped"`
}
