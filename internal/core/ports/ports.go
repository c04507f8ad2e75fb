package ports

import (
	"context"

	"github.com/lorrc/service-desk-realtime/internal/core/domain"
)

// NotificationAPI defines the port to the REST notification endpoints.
type NotificationAPI interface {
	ListNotifications(ctx context.Context) (*domain.NotificationPage, error)
	MarkNotificationRead(ctx context.Context, id string) error
}

// TokenRefresher exchanges a refresh token for a new access token.
type TokenRefresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (domain.Credential, error)
}

// TokenStore persists the credential between process restarts.
type TokenStore interface {
	Load(ctx context.Context) (domain.Credential, error)
	Save(ctx context.Context, cred domain.Credential) error
	Clear(ctx context.Context) error
}

// IdentitySource returns the principal behind the current credential.
type IdentitySource interface {
	Identity() (domain.Identity, error)
}

// IdentityResolver derives the principal from an access token.
type IdentityResolver interface {
	Resolve(accessToken string) (domain.Identity, error)
}

// Alerter surfaces a transient, user-facing alert for a notification.
type Alerter interface {
	Alert(n domain.Notification)
}

// Channel is a handle to the push channel. The inert handle returned when no
// credential exists implements it too, so callers never nil-check.
type Channel interface {
	ID() string
	State() domain.ConnectionState
	Connected() bool
	Emit(cmd domain.Command) error
}

// ChannelProvider hands out the channel handle. Acquire reconciles the handle
// with the current credential; Current only reads it.
type ChannelProvider interface {
	Acquire(ctx context.Context) Channel
	Current() Channel
	ReportHealth(healthy bool)
}

// EventHandler receives one decoded push event.
type EventHandler func(ch Channel, event domain.InboundEvent)

// StateHandler receives channel lifecycle transitions.
type StateHandler func(ch Channel, state domain.ConnectionState)

// EventSubscriber registers push-event and lifecycle listeners. Each call
// returns a disposer that removes the listener.
type EventSubscriber interface {
	Subscribe(kind domain.EventKind, h EventHandler) (dispose func())
	OnState(h StateHandler) (dispose func())
}

// ChannelSupervisor owns the push channel for the whole process.
type ChannelSupervisor interface {
	ChannelProvider
	EventSubscriber

	// Watch acquires a channel and keeps it bound to the current credential
	// until ctx is done.
	Watch(ctx context.Context) error
	Shutdown()
}

// Refresher performs one authoritative refresh of client state.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RefreshTrigger requests an out-of-band refresh without waiting for it.
type RefreshTrigger interface {
	Trigger()
}

// RealtimeService is the read/write surface exposed to UI adapters.
type RealtimeService interface {
	NotificationView() domain.NotificationView
	MarkAsRead(ctx context.Context, id string) error
	RefreshNow()
	UnreadView() domain.UnreadView
	IsUnread(entityType domain.EntityType, id string) bool
	IsHighlighted(entityType domain.EntityType, id string) bool
	MarkEntityRead(entityType domain.EntityType, id string) error
	SyncStatus() domain.SyncStatus
}
