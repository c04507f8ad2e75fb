package domain

import "time"

// SyncState is the state of the polling fallback.
type SyncState string

const (
	SyncIdle    SyncState = "idle"
	SyncRunning SyncState = "running"
	SyncError   SyncState = "error"
)

// SyncStatus reports the last fallback refresh.
type SyncStatus struct {
	State    SyncState  `json:"state"`
	LastSync *time.Time `json:"lastSync,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// NotificationView is the snapshot the UI renders for the notification feed.
type NotificationView struct {
	Notifications    []Notification   `json:"notifications"`
	UnreadCount      int              `json:"unreadCount"`
	ConnectionStatus ConnectionStatus `json:"connectionStatus"`
	LastUpdated      *time.Time       `json:"lastUpdated,omitempty"`
	LastHeartbeatAt  *time.Time       `json:"lastHeartbeatAt,omitempty"`
}

// UnreadEntry is one entity in the unread ledger.
type UnreadEntry struct {
	Type        EntityType `json:"type"`
	ID          string     `json:"id"`
	Count       int        `json:"count"`
	Highlighted bool       `json:"highlighted"`
}

// UnreadView is the snapshot the UI renders for unread badges.
type UnreadView struct {
	Counts UnreadCounts  `json:"counts"`
	Items  []UnreadEntry `json:"items"`
}
