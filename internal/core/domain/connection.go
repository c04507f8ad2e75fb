package domain

import "time"

// ConnectionState is the lifecycle state of the push channel.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateDegraded     ConnectionState = "degraded"
	StateAuthError    ConnectionState = "auth_error"

	// StateClosing is announced right before a handle is torn down so
	// listeners can send their last commands on it.
	StateClosing ConnectionState = "closing"
)

// IsOpen returns true if the transport is up, healthy or not.
func (s ConnectionState) IsOpen() bool {
	return s == StateConnected || s == StateDegraded
}

// ConnectionStatus is the three-valued indicator rendered by the UI.
type ConnectionStatus string

const (
	StatusOffline  ConnectionStatus = "offline"
	StatusDegraded ConnectionStatus = "degraded"
	StatusLive     ConnectionStatus = "live"
)

// DeriveStatus maps the (connected, healthy) pair to a UI status.
func DeriveStatus(connected, healthy bool) ConnectionStatus {
	switch {
	case !connected:
		return StatusOffline
	case !healthy:
		return StatusDegraded
	default:
		return StatusLive
	}
}

// HeartbeatRecord is the last known probe outcome.
type HeartbeatRecord struct {
	LastProbeSentAt time.Time `json:"lastProbeSentAt"`
	LastAckAt       time.Time `json:"lastAckAt"`
	Healthy         bool      `json:"healthy"`
}

// HeartbeatState is the public view of the heartbeat monitor.
type HeartbeatState struct {
	Connected       bool       `json:"connected"`
	Healthy         bool       `json:"healthy"`
	LastHeartbeatAt *time.Time `json:"lastHeartbeatAt,omitempty"`
}

// Status derives the UI status from the heartbeat state.
func (s HeartbeatState) Status() ConnectionStatus {
	return DeriveStatus(s.Connected, s.Healthy)
}
