package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/service-desk-realtime/internal/core/domain"
	"github.com/lorrc/service-desk-realtime/internal/core/mocks"
	"github.com/lorrc/service-desk-realtime/internal/core/services"
	"github.com/lorrc/service-desk-realtime/internal/infrastructure/logging"
)

func notification(id string, read bool) domain.Notification {
	return domain.Notification{
		ID:        id,
		Type:      "ticket",
		Message:   "Ticket " + id,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Read:      read,
	}
}

func intPtr(v int) *int { return &v }

func TestNotificationStore_ApplyPush(t *testing.T) {
	t.Run("duplicate push is ignored", func(t *testing.T) {
		alerter := mocks.NewMockAlerter()
		alerter.On("Alert", mock.Anything).Return()
		store := services.NewNotificationStore(mocks.NewMockNotificationAPI(), alerter, logging.Discard())

		assert.True(t, store.ApplyPush(notification("n1", false)))
		assert.False(t, store.ApplyPush(notification("n1", false)))

		snap := store.Snapshot()
		assert.Len(t, snap.Notifications, 1)
		assert.Equal(t, 1, snap.UnreadCount)
		assert.NotNil(t, snap.LastUpdated)
		alerter.AssertNumberOfCalls(t, "Alert", 1)
	})

	t.Run("newest first and read pushes do not count", func(t *testing.T) {
		store := services.NewNotificationStore(mocks.NewMockNotificationAPI(), nil, logging.Discard())

		store.ApplyPush(notification("n1", false))
		store.ApplyPush(notification("n2", true))

		snap := store.Snapshot()
		require.Len(t, snap.Notifications, 2)
		assert.Equal(t, "n2", snap.Notifications[0].ID)
		assert.Equal(t, 1, snap.UnreadCount)
	})
}

func TestNotificationStore_Merge(t *testing.T) {
	store := services.NewNotificationStore(mocks.NewMockNotificationAPI(), nil, logging.Discard())
	store.ApplyPush(notification("local", false))

	t.Run("replaces state and counts unread items", func(t *testing.T) {
		store.Merge(domain.NotificationPage{Items: []domain.Notification{
			notification("n1", false),
			notification("n2", true),
			notification("n3", false),
		}})

		snap := store.Snapshot()
		assert.Len(t, snap.Notifications, 3)
		assert.Equal(t, 2, snap.UnreadCount)
	})

	t.Run("server unread count wins", func(t *testing.T) {
		store.Merge(domain.NotificationPage{
			Items:       []domain.Notification{notification("n1", false)},
			UnreadCount: intPtr(7),
		})
		assert.Equal(t, 7, store.Snapshot().UnreadCount)
	})

	t.Run("merged ids are deduplicated against pushes", func(t *testing.T) {
		assert.False(t, store.ApplyPush(notification("n1", false)))
		assert.True(t, store.ApplyPush(notification("local", false)))
	})
}

func TestNotificationStore_MarkRead(t *testing.T) {
	ctx := context.Background()

	t.Run("optimistic then confirmed", func(t *testing.T) {
		api := mocks.NewMockNotificationAPI()
		api.On("MarkNotificationRead", ctx, "n1").Return(nil)
		store := services.NewNotificationStore(api, nil, logging.Discard())
		store.Merge(domain.NotificationPage{Items: []domain.Notification{notification("n1", false)}})

		require.NoError(t, store.MarkRead(ctx, "n1"))

		snap := store.Snapshot()
		assert.True(t, snap.Notifications[0].Read)
		assert.Equal(t, 0, snap.UnreadCount)
		api.AssertExpectations(t)
	})

	t.Run("failure keeps optimistic state until next merge", func(t *testing.T) {
		api := mocks.NewMockNotificationAPI()
		api.On("MarkNotificationRead", ctx, "n1").Return(errors.New("boom"))
		api.On("ListNotifications", ctx).Return(&domain.NotificationPage{
			Items: []domain.Notification{notification("n1", false)},
		}, nil)
		store := services.NewNotificationStore(api, nil, logging.Discard())
		store.Merge(domain.NotificationPage{Items: []domain.Notification{notification("n1", false)}})

		assert.Error(t, store.MarkRead(ctx, "n1"))
		assert.True(t, store.Snapshot().Notifications[0].Read)
		assert.Equal(t, 0, store.Snapshot().UnreadCount)

		require.NoError(t, store.Refresh(ctx))
		assert.False(t, store.Snapshot().Notifications[0].Read)
		assert.Equal(t, 1, store.Snapshot().UnreadCount)
	})

	t.Run("already read does not decrement", func(t *testing.T) {
		api := mocks.NewMockNotificationAPI()
		api.On("MarkNotificationRead", ctx, "n1").Return(nil)
		store := services.NewNotificationStore(api, nil, logging.Discard())
		store.Merge(domain.NotificationPage{
			Items:       []domain.Notification{notification("n1", true)},
			UnreadCount: intPtr(0),
		})

		require.NoError(t, store.MarkRead(ctx, "n1"))
		assert.Equal(t, 0, store.Snapshot().UnreadCount)
	})
}

func TestNotificationStore_Refresh(t *testing.T) {
	ctx := context.Background()

	t.Run("error leaves state untouched", func(t *testing.T) {
		api := mocks.NewMockNotificationAPI()
		api.On("ListNotifications", ctx).Return(nil, errors.New("offline"))
		store := services.NewNotificationStore(api, nil, logging.Discard())
		store.ApplyPush(notification("n1", false))

		assert.Error(t, store.Refresh(ctx))
		assert.Len(t, store.Snapshot().Notifications, 1)
	})

	t.Run("push then refresh converges to server view", func(t *testing.T) {
		api := mocks.NewMockNotificationAPI()
		api.On("ListNotifications", ctx).Return(&domain.NotificationPage{
			Items:       []domain.Notification{notification("n2", false), notification("n1", true)},
			UnreadCount: intPtr(1),
		}, nil)
		store := services.NewNotificationStore(api, nil, logging.Discard())
		store.ApplyPush(notification("n1", false))
		store.ApplyPush(notification("n2", false))

		require.NoError(t, store.Refresh(ctx))

		snap := store.Snapshot()
		require.Len(t, snap.Notifications, 2)
		assert.Equal(t, "n2", snap.Notifications[0].ID)
		assert.True(t, snap.Notifications[1].Read)
		assert.Equal(t, 1, snap.UnreadCount)
	})
}
