package services

import (
	"cmp"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/lorrc/service-desk-realtime/internal/core/domain"
	apperrors "github.com/lorrc/service-desk-realtime/internal/core/errors"
	"github.com/lorrc/service-desk-realtime/internal/core/ports"
	"github.com/lorrc/service-desk-realtime/internal/infrastructure/logging"
)

// DefaultHighlightDuration is how long a freshly updated entity stays highlighted.
const DefaultHighlightDuration = 6 * time.Second

// LedgerOptions switches tracking per entity type.
type LedgerOptions struct {
	Tickets      bool
	Appointments bool
	Chats        bool
}

// DefaultLedgerOptions tracks everything.
func DefaultLedgerOptions() LedgerOptions {
	return LedgerOptions{Tickets: true, Appointments: true, Chats: true}
}

func (o LedgerOptions) tracks(t domain.EntityType) bool {
	switch t {
	case domain.EntityTicket:
		return o.Tickets
	case domain.EntityAppointment:
		return o.Appointments
	case domain.EntityChat:
		return o.Chats
	}
	return false
}

// UnreadLedger tracks per-entity unread markers and short-lived highlights.
type UnreadLedger struct {
	channels     ports.ChannelProvider
	identity     ports.IdentitySource
	opts         LedgerOptions
	highlightFor time.Duration
	logger       *slog.Logger

	mu         sync.Mutex
	entries    map[domain.LedgerKey]int
	highlights map[domain.LedgerKey]uint64
	generation uint64
}

// NewUnreadLedger creates an empty ledger.
func NewUnreadLedger(
	channels ports.ChannelProvider,
	identity ports.IdentitySource,
	opts LedgerOptions,
	highlightFor time.Duration,
	logger *slog.Logger,
) *UnreadLedger {
	if highlightFor <= 0 {
		highlightFor = DefaultHighlightDuration
	}
	return &UnreadLedger{
		channels:     channels,
		identity:     identity,
		opts:         opts,
		highlightFor: highlightFor,
		logger:       logging.Component(logger, "unread"),
		entries:      make(map[domain.LedgerKey]int),
		highlights:   make(map[domain.LedgerKey]uint64),
	}
}

// RecordEvent marks an entity unread and highlights it. Tickets and chats
// count events; appointments only record presence.
func (l *UnreadLedger) RecordEvent(t domain.EntityType, id string) {
	l.record(t, id, true)
}

func (l *UnreadLedger) record(t domain.EntityType, id string, highlight bool) {
	if id == "" || !l.opts.tracks(t) {
		return
	}

	key := domain.LedgerKey{Type: t, ID: id}
	l.mu.Lock()
	if t.Counted() {
		l.entries[key]++
	} else {
		l.entries[key] = 1
	}
	l.mu.Unlock()

	if highlight {
		l.Highlight(t, id)
	}
}

// Highlight marks the entity for HighlightDuration. A later highlight of the
// same entity extends the window; the earlier timer then does nothing.
func (l *UnreadLedger) Highlight(t domain.EntityType, id string) {
	if id == "" || !t.IsValid() {
		return
	}

	key := domain.LedgerKey{Type: t, ID: id}
	l.mu.Lock()
	l.generation++
	gen := l.generation
	l.highlights[key] = gen
	l.mu.Unlock()

	time.AfterFunc(l.highlightFor, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.highlights[key] == gen {
			delete(l.highlights, key)
		}
	})
}

// Clear removes the entity's unread marker and highlight, then tells the
// server on the current channel without waiting for an answer.
func (l *UnreadLedger) Clear(t domain.EntityType, id string) error {
	if !t.IsValid() {
		return apperrors.ErrInvalidEntityType
	}
	if id == "" {
		return apperrors.ErrEntityIDRequired
	}

	key := domain.LedgerKey{Type: t, ID: id}
	l.mu.Lock()
	delete(l.entries, key)
	delete(l.highlights, key)
	l.mu.Unlock()

	var userID string
	if identity, err := l.identity.Identity(); err == nil {
		userID = identity.UserID
	}

	if err := l.channels.Current().Emit(domain.ReadSignal(t, id, userID)); err != nil {
		l.logger.Debug("read signal not sent", "type", t, "id", id, "error", err)
	}
	return nil
}

// IsUnread reports whether the entity has an unread marker.
func (l *UnreadLedger) IsUnread(t domain.EntityType, id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entries[domain.LedgerKey{Type: t, ID: id}] > 0
}

// IsHighlighted reports whether the entity is inside its highlight window.
func (l *UnreadLedger) IsHighlighted(t domain.EntityType, id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.highlights[domain.LedgerKey{Type: t, ID: id}]
	return ok
}

// UnreadCount returns the per-entity counter, 1 for an unread appointment.
func (l *UnreadLedger) UnreadCount(t domain.EntityType, id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entries[domain.LedgerKey{Type: t, ID: id}]
}

// Counts returns the number of distinct unread entities per type.
func (l *UnreadLedger) Counts() domain.UnreadCounts {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.countsLocked()
}

func (l *UnreadLedger) countsLocked() domain.UnreadCounts {
	var c domain.UnreadCounts
	for key := range l.entries {
		switch key.Type {
		case domain.EntityTicket:
			c.Tickets++
		case domain.EntityAppointment:
			c.Appointments++
		case domain.EntityChat:
			c.Chats++
		}
	}
	c.Total = c.Tickets + c.Appointments + c.Chats
	return c
}

// View returns counts and every unread entry ordered by type then id.
func (l *UnreadLedger) View() domain.UnreadView {
	l.mu.Lock()
	defer l.mu.Unlock()

	items := make([]domain.UnreadEntry, 0, len(l.entries))
	for key, count := range l.entries {
		_, highlighted := l.highlights[key]
		items = append(items, domain.UnreadEntry{
			Type:        key.Type,
			ID:          key.ID,
			Count:       count,
			Highlighted: highlighted,
		})
	}
	slices.SortFunc(items, func(a, b domain.UnreadEntry) int {
		return cmp.Or(cmp.Compare(a.Type, b.Type), cmp.Compare(a.ID, b.ID))
	})

	return domain.UnreadView{Counts: l.countsLocked(), Items: items}
}

// HandleEvent applies the unread policy to one push event.
func (l *UnreadLedger) HandleEvent(_ ports.Channel, event domain.InboundEvent) {
	switch e := event.(type) {
	case domain.TicketCreated:
		if e.CustomerID == "" {
			l.RecordEvent(domain.EntityTicket, e.TicketID)
			return
		}
		identity, err := l.identity.Identity()
		if err != nil {
			l.logger.Debug("ticket created event skipped, identity unknown", "ticket_id", e.TicketID)
			return
		}
		if e.CustomerID == identity.UserID || identity.IsPrivileged() {
			l.RecordEvent(domain.EntityTicket, e.TicketID)
		}

	case domain.TicketUpdated:
		l.RecordEvent(domain.EntityTicket, e.TicketID)

	case domain.TicketMessage:
		if e.TicketID == "" {
			return
		}
		if identity, err := l.identity.Identity(); err == nil && e.FromUserID == identity.UserID {
			return
		}
		l.RecordEvent(domain.EntityChat, e.TicketID)

	case domain.AppointmentChanged:
		l.RecordEvent(domain.EntityAppointment, e.AppointmentID)
		l.record(domain.EntityTicket, e.TicketID, false)
	}
}
