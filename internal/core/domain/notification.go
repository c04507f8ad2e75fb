package domain

import "time"

// Notification is a single feed entry. ID is its identity.
type Notification struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	CreatedAt time.Time      `json:"createdAt"`
	Read      bool           `json:"read"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NotificationPage is the body of GET /notifications.
type NotificationPage struct {
	Items       []Notification `json:"items"`
	UnreadCount *int           `json:"unreadCount,omitempty"`
}

// CountUnread returns the server-reported unread count, or counts the
// unread items when the server omitted it.
func (p NotificationPage) CountUnread() int {
	if p.UnreadCount != nil {
		return *p.UnreadCount
	}
	count := 0
	for _, n := range p.Items {
		if !n.Read {
			count++
		}
	}
	return count
}
