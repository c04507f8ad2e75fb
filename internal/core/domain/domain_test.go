package domain_test

import (
	"testing"

	"github.com/lorrc/service-desk-realtime/internal/core/domain"
	apperrors "github.com/lorrc/service-desk-realtime/internal/core/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name      string
		connected bool
		healthy   bool
		expected  domain.ConnectionStatus
	}{
		{"disconnected and unhealthy", false, false, domain.StatusOffline},
		{"disconnected but last probe healthy", false, true, domain.StatusOffline},
		{"connected but unhealthy", true, false, domain.StatusDegraded},
		{"connected and healthy", true, true, domain.StatusLive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, domain.DeriveStatus(tt.connected, tt.healthy))
		})
	}
}

func TestIdentity_IsPrivileged(t *testing.T) {
	assert.True(t, domain.Identity{UserID: "u", Roles: []string{"customer", "technician"}}.IsPrivileged())
	assert.True(t, domain.Identity{UserID: "u", Roles: []string{"admin"}}.IsPrivileged())
	assert.False(t, domain.Identity{UserID: "u", Roles: []string{"customer"}}.IsPrivileged())
	assert.False(t, domain.Identity{UserID: "u"}.IsPrivileged())
}

func TestParseEntityType(t *testing.T) {
	for _, in := range []string{"ticket", "tickets", " Tickets "} {
		got, err := domain.ParseEntityType(in)
		require.NoError(t, err)
		assert.Equal(t, domain.EntityTicket, got)
	}

	got, err := domain.ParseEntityType("chats")
	require.NoError(t, err)
	assert.Equal(t, domain.EntityChat, got)

	got, err = domain.ParseEntityType("appointments")
	require.NoError(t, err)
	assert.Equal(t, domain.EntityAppointment, got)

	_, err = domain.ParseEntityType("invoices")
	assert.ErrorIs(t, err, apperrors.ErrInvalidEntityType)
}

func TestNotificationPage_CountUnread(t *testing.T) {
	page := domain.NotificationPage{Items: []domain.Notification{
		{ID: "1", Read: false},
		{ID: "2", Read: true},
		{ID: "3", Read: false},
	}}
	assert.Equal(t, 2, page.CountUnread())

	reported := 7
	page.UnreadCount = &reported
	assert.Equal(t, 7, page.CountUnread())
}
