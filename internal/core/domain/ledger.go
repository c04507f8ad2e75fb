package domain

import (
	"strings"

	apperrors "github.com/lorrc/service-desk-realtime/internal/core/errors"
)

// EntityType identifies which ledger an unread entry belongs to.
type EntityType string

const (
	EntityTicket      EntityType = "ticket"
	EntityAppointment EntityType = "appointment"
	EntityChat        EntityType = "chat"
)

// EntityTypes lists every ledger in display order.
var EntityTypes = []EntityType{EntityTicket, EntityAppointment, EntityChat}

// IsValid checks if the entity type is known
func (t EntityType) IsValid() bool {
	switch t {
	case EntityTicket, EntityAppointment, EntityChat:
		return true
	}
	return false
}

// Counted reports whether entries of this type carry a counter rather than
// a presence flag.
func (t EntityType) Counted() bool {
	return t != EntityAppointment
}

// ParseEntityType accepts both singular and plural names ("tickets", "chat").
func ParseEntityType(s string) (EntityType, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.TrimSuffix(normalized, "s")
	t := EntityType(normalized)
	if !t.IsValid() {
		return "", apperrors.ErrInvalidEntityType
	}
	return t, nil
}

// UnreadCounts is the number of distinct unread entities per ledger.
type UnreadCounts struct {
	Tickets      int `json:"tickets"`
	Appointments int `json:"appointments"`
	Chats        int `json:"chats"`
	Total        int `json:"total"`
}

// LedgerKey addresses one unread entry.
type LedgerKey struct {
	Type EntityType
	ID   string
}
