package services_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/service-desk-realtime/internal/core/domain"
	apperrors "github.com/lorrc/service-desk-realtime/internal/core/errors"
	"github.com/lorrc/service-desk-realtime/internal/core/mocks"
	"github.com/lorrc/service-desk-realtime/internal/core/services"
	"github.com/lorrc/service-desk-realtime/internal/infrastructure/logging"
)

type ledgerFixture struct {
	ledger   *services.UnreadLedger
	channel  *mocks.MockChannel
	identity *mocks.MockIdentitySource
}

func newLedgerFixture(t *testing.T, identity domain.Identity, opts services.LedgerOptions, highlight time.Duration) ledgerFixture {
	t.Helper()

	ch := mocks.NewMockChannel()
	ch.On("Emit", mock.Anything).Return(nil).Maybe()
	ch.On("ID").Return("h1").Maybe()

	provider := mocks.NewMockChannelProvider()
	provider.On("Current").Return(ch).Maybe()

	ids := mocks.NewMockIdentitySource()
	ids.On("Identity").Return(identity, nil).Maybe()

	return ledgerFixture{
		ledger:   services.NewUnreadLedger(provider, ids, opts, highlight, logging.Discard()),
		channel:  ch,
		identity: ids,
	}
}

func TestUnreadLedger_RecordAndClear(t *testing.T) {
	f := newLedgerFixture(t, domain.Identity{UserID: "u1"}, services.DefaultLedgerOptions(), time.Minute)

	f.ledger.RecordEvent(domain.EntityTicket, "t1")
	f.ledger.RecordEvent(domain.EntityTicket, "t1")

	assert.True(t, f.ledger.IsUnread(domain.EntityTicket, "t1"))
	assert.Equal(t, 2, f.ledger.UnreadCount(domain.EntityTicket, "t1"))
	assert.Equal(t, 1, f.ledger.Counts().Tickets)

	require.NoError(t, f.ledger.Clear(domain.EntityTicket, "t1"))

	assert.False(t, f.ledger.IsUnread(domain.EntityTicket, "t1"))
	assert.False(t, f.ledger.IsHighlighted(domain.EntityTicket, "t1"))
	assert.Equal(t, 0, f.ledger.Counts().Total)

	emitted := f.channel.Emitted()
	require.Len(t, emitted, 1)
	assert.Equal(t, "ticket:read", emitted[0].Type)
	assert.Equal(t, map[string]string{"id": "t1", "ticketId": "t1", "userId": "u1"}, emitted[0].Payload)
}

func TestUnreadLedger_AppointmentsArePresenceOnly(t *testing.T) {
	f := newLedgerFixture(t, domain.Identity{UserID: "u1"}, services.DefaultLedgerOptions(), time.Minute)

	f.ledger.RecordEvent(domain.EntityAppointment, "a1")
	f.ledger.RecordEvent(domain.EntityAppointment, "a1")
	f.ledger.RecordEvent(domain.EntityChat, "c1")

	assert.Equal(t, 1, f.ledger.UnreadCount(domain.EntityAppointment, "a1"))
	assert.Equal(t, domain.UnreadCounts{Appointments: 1, Chats: 1, Total: 2}, f.ledger.Counts())
}

func TestUnreadLedger_ClearValidates(t *testing.T) {
	f := newLedgerFixture(t, domain.Identity{UserID: "u1"}, services.DefaultLedgerOptions(), time.Minute)

	assert.ErrorIs(t, f.ledger.Clear("widget", "x"), apperrors.ErrInvalidEntityType)
	assert.ErrorIs(t, f.ledger.Clear(domain.EntityTicket, ""), apperrors.ErrEntityIDRequired)
	assert.Empty(t, f.channel.Emitted())
}

func TestUnreadLedger_HighlightExpires(t *testing.T) {
	f := newLedgerFixture(t, domain.Identity{UserID: "u1"}, services.DefaultLedgerOptions(), 40*time.Millisecond)

	f.ledger.RecordEvent(domain.EntityTicket, "t1")
	assert.True(t, f.ledger.IsHighlighted(domain.EntityTicket, "t1"))

	assert.Eventually(t, func() bool {
		return !f.ledger.IsHighlighted(domain.EntityTicket, "t1")
	}, time.Second, 5*time.Millisecond)

	// The unread marker outlives the highlight.
	assert.True(t, f.ledger.IsUnread(domain.EntityTicket, "t1"))
}

func TestUnreadLedger_RehighlightExtendsWindow(t *testing.T) {
	f := newLedgerFixture(t, domain.Identity{UserID: "u1"}, services.DefaultLedgerOptions(), 80*time.Millisecond)

	f.ledger.Highlight(domain.EntityChat, "c1")
	time.Sleep(50 * time.Millisecond)
	f.ledger.Highlight(domain.EntityChat, "c1")

	// The first timer fires here but must not remove the newer highlight.
	time.Sleep(50 * time.Millisecond)
	assert.True(t, f.ledger.IsHighlighted(domain.EntityChat, "c1"))

	assert.Eventually(t, func() bool {
		return !f.ledger.IsHighlighted(domain.EntityChat, "c1")
	}, time.Second, 5*time.Millisecond)
}

func TestUnreadLedger_HandleEvent(t *testing.T) {
	customer := domain.Identity{UserID: "u1", Roles: []string{"customer"}}
	staff := domain.Identity{UserID: "s1", Roles: []string{"technician"}}

	tests := []struct {
		name     string
		identity domain.Identity
		opts     services.LedgerOptions
		event    domain.InboundEvent
		key      domain.LedgerKey
		unread   bool
		lit      bool
	}{
		{
			name:     "ticket created without customer",
			identity: customer,
			event:    domain.TicketCreated{TicketID: "t1"},
			key:      domain.LedgerKey{Type: domain.EntityTicket, ID: "t1"},
			unread:   true,
			lit:      true,
		},
		{
			name:     "ticket created for self",
			identity: customer,
			event:    domain.TicketCreated{TicketID: "t1", CustomerID: "u1"},
			key:      domain.LedgerKey{Type: domain.EntityTicket, ID: "t1"},
			unread:   true,
			lit:      true,
		},
		{
			name:     "ticket created for another customer",
			identity: customer,
			event:    domain.TicketCreated{TicketID: "t1", CustomerID: "u2"},
			key:      domain.LedgerKey{Type: domain.EntityTicket, ID: "t1"},
		},
		{
			name:     "staff sees every created ticket",
			identity: staff,
			event:    domain.TicketCreated{TicketID: "t1", CustomerID: "u2"},
			key:      domain.LedgerKey{Type: domain.EntityTicket, ID: "t1"},
			unread:   true,
			lit:      true,
		},
		{
			name:     "ticket updated",
			identity: customer,
			event:    domain.TicketUpdated{TicketID: "t1"},
			key:      domain.LedgerKey{Type: domain.EntityTicket, ID: "t1"},
			unread:   true,
			lit:      true,
		},
		{
			name:     "message from someone else",
			identity: customer,
			event:    domain.TicketMessage{TicketID: "t1", FromUserID: "s1"},
			key:      domain.LedgerKey{Type: domain.EntityChat, ID: "t1"},
			unread:   true,
			lit:      true,
		},
		{
			name:     "own message",
			identity: customer,
			event:    domain.TicketMessage{TicketID: "t1", FromUserID: "u1"},
			key:      domain.LedgerKey{Type: domain.EntityChat, ID: "t1"},
		},
		{
			name:     "appointment",
			identity: customer,
			event:    domain.AppointmentChanged{Created: true, AppointmentID: "a1", TicketID: "t1"},
			key:      domain.LedgerKey{Type: domain.EntityAppointment, ID: "a1"},
			unread:   true,
			lit:      true,
		},
		{
			name:     "appointment marks its ticket without highlight",
			identity: customer,
			event:    domain.AppointmentChanged{AppointmentID: "a1", TicketID: "t1"},
			key:      domain.LedgerKey{Type: domain.EntityTicket, ID: "t1"},
			unread:   true,
		},
		{
			name:     "disabled type",
			identity: customer,
			opts:     services.LedgerOptions{Tickets: true, Appointments: true},
			event:    domain.TicketMessage{TicketID: "t1", FromUserID: "s1"},
			key:      domain.LedgerKey{Type: domain.EntityChat, ID: "t1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts
			if opts == (services.LedgerOptions{}) {
				opts = services.DefaultLedgerOptions()
			}
			f := newLedgerFixture(t, tt.identity, opts, time.Minute)

			f.ledger.HandleEvent(f.channel, tt.event)

			assert.Equal(t, tt.unread, f.ledger.IsUnread(tt.key.Type, tt.key.ID))
			assert.Equal(t, tt.lit, f.ledger.IsHighlighted(tt.key.Type, tt.key.ID))
		})
	}
}

func TestUnreadLedger_View(t *testing.T) {
	f := newLedgerFixture(t, domain.Identity{UserID: "u1"}, services.DefaultLedgerOptions(), time.Minute)

	f.ledger.RecordEvent(domain.EntityTicket, "t2")
	f.ledger.RecordEvent(domain.EntityChat, "c1")
	f.ledger.RecordEvent(domain.EntityTicket, "t1")

	view := f.ledger.View()
	assert.Equal(t, domain.UnreadCounts{Tickets: 2, Chats: 1, Total: 3}, view.Counts)
	require.Len(t, view.Items, 3)
	assert.Equal(t, domain.EntityChat, view.Items[0].Type)
	assert.Equal(t, "t1", view.Items[1].ID)
	assert.Equal(t, "t2", view.Items[2].ID)
	assert.True(t, view.Items[2].Highlighted)
}
