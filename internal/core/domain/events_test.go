package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/lorrc/service-desk-realtime/internal/core/domain"
	apperrors "github.com/lorrc/service-desk-realtime/internal/core/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envelope(kind, payload string) domain.Envelope {
	return domain.Envelope{Type: kind, Payload: json.RawMessage(payload)}
}

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name     string
		env      domain.Envelope
		expected domain.InboundEvent
	}{
		{
			name:     "ticket created with id",
			env:      envelope("ticket:created", `{"id":"t1","customerId":"u1"}`),
			expected: domain.TicketCreated{TicketID: "t1", CustomerID: "u1"},
		},
		{
			name:     "ticket updated falls back to ticketId",
			env:      envelope("ticket:updated", `{"ticketId":"t2"}`),
			expected: domain.TicketUpdated{TicketID: "t2"},
		},
		{
			name:     "numeric ids are accepted",
			env:      envelope("ticket:updated", `{"id":42}`),
			expected: domain.TicketUpdated{TicketID: "42"},
		},
		{
			name:     "ticket message with fromUserId",
			env:      envelope("ticket:message", `{"ticketId":"t1","fromUserId":"u9"}`),
			expected: domain.TicketMessage{TicketID: "t1", FromUserID: "u9"},
		},
		{
			name:     "ticket message falls back to userId",
			env:      envelope("ticket:message", `{"ticketId":"t1","userId":"u8"}`),
			expected: domain.TicketMessage{TicketID: "t1", FromUserID: "u8"},
		},
		{
			name:     "appointment created with related ticket",
			env:      envelope("appointment:created", `{"id":"a1","ticketId":"t3"}`),
			expected: domain.AppointmentChanged{Created: true, AppointmentID: "a1", TicketID: "t3"},
		},
		{
			name:     "appointment updated with appointmentId",
			env:      envelope("appointment:updated", `{"appointmentId":"a2"}`),
			expected: domain.AppointmentChanged{AppointmentID: "a2"},
		},
		{
			name:     "pong without payload",
			env:      domain.Envelope{Type: "pong"},
			expected: domain.Pong{},
		},
		{
			name:     "server error",
			env:      envelope("error", `{"message":"Invalid or expired token"}`),
			expected: domain.ServerError{Message: "Invalid or expired token"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := domain.DecodeEvent(tt.env)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, event)
			assert.Equal(t, domain.EventKind(tt.env.Type), event.Kind())
		})
	}
}

func TestDecodeEvent_Notification(t *testing.T) {
	env := envelope("notification:new", `{"id":"n1","type":"INFO","message":"x","read":false,"createdAt":"2024-05-01T10:00:00Z"}`)

	event, err := domain.DecodeEvent(env)
	require.NoError(t, err)

	n, ok := event.(domain.NotificationNew)
	require.True(t, ok)
	assert.Equal(t, "n1", n.Notification.ID)
	assert.Equal(t, "INFO", n.Notification.Type)
	assert.False(t, n.Notification.Read)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), n.Notification.CreatedAt)
}

func TestDecodeEvent_Errors(t *testing.T) {
	t.Run("unknown kind", func(t *testing.T) {
		_, err := domain.DecodeEvent(envelope("presence.changed", `{}`))
		assert.ErrorIs(t, err, apperrors.ErrUnknownEvent)
	})

	t.Run("notification without id", func(t *testing.T) {
		_, err := domain.DecodeEvent(envelope("notification:new", `{"message":"x"}`))
		assert.ErrorIs(t, err, apperrors.ErrMalformedEvent)
	})

	t.Run("payload of wrong shape", func(t *testing.T) {
		_, err := domain.DecodeEvent(envelope("ticket:created", `[1,2]`))
		assert.ErrorIs(t, err, apperrors.ErrMalformedEvent)
	})
}

func TestCommands(t *testing.T) {
	t.Run("join user", func(t *testing.T) {
		data, err := json.Marshal(domain.JoinUser("u1"))
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"join-user","payload":{"userId":"u1"}}`, string(data))
	})

	t.Run("join admin has no payload", func(t *testing.T) {
		data, err := json.Marshal(domain.JoinAdmin())
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"join-admin"}`, string(data))
	})

	t.Run("ping carries millisecond timestamp", func(t *testing.T) {
		at := time.UnixMilli(1714557600123)
		data, err := json.Marshal(domain.Ping(at))
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"ping","payload":{"ts":1714557600123}}`, string(data))
	})

	t.Run("read signal names follow entity type", func(t *testing.T) {
		assert.Equal(t, "ticket:read", domain.ReadSignal(domain.EntityTicket, "t1", "u1").Type)
		assert.Equal(t, "appointment:read", domain.ReadSignal(domain.EntityAppointment, "a1", "u1").Type)
		assert.Equal(t, "ticket:message:read", domain.ReadSignal(domain.EntityChat, "t1", "u1").Type)

		data, err := json.Marshal(domain.ReadSignal(domain.EntityChat, "t1", "u1"))
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"ticket:message:read","payload":{"id":"t1","userId":"u1","conversationId":"t1"}}`, string(data))
	})
}
