package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lorrc/service-desk-realtime/internal/core/domain"
	"github.com/lorrc/service-desk-realtime/internal/core/ports"
	"github.com/lorrc/service-desk-realtime/internal/infrastructure/logging"
)

// NotificationSnapshot is a copy of the feed state.
type NotificationSnapshot struct {
	Notifications []domain.Notification
	UnreadCount   int
	LastUpdated   *time.Time
}

// NotificationStore keeps the notification feed. Pushes are merged in
// incrementally; a server fetch replaces everything.
type NotificationStore struct {
	api     ports.NotificationAPI
	alerter ports.Alerter
	logger  *slog.Logger
	now     func() time.Time

	mu          sync.RWMutex
	items       []domain.Notification
	known       map[string]struct{}
	unread      int
	lastUpdated time.Time
}

var _ ports.Refresher = (*NotificationStore)(nil)

// NewNotificationStore creates an empty store. alerter may be nil.
func NewNotificationStore(api ports.NotificationAPI, alerter ports.Alerter, logger *slog.Logger) *NotificationStore {
	return &NotificationStore{
		api:     api,
		alerter: alerter,
		logger:  logging.Component(logger, "notifications"),
		now:     time.Now,
		known:   make(map[string]struct{}),
	}
}

// ApplyPush prepends a pushed notification. Returns false for an id that is
// already in the feed.
func (s *NotificationStore) ApplyPush(n domain.Notification) bool {
	s.mu.Lock()
	if _, ok := s.known[n.ID]; ok {
		s.mu.Unlock()
		s.logger.Debug("duplicate notification ignored", "notification_id", n.ID)
		return false
	}

	s.items = append([]domain.Notification{n}, s.items...)
	s.known[n.ID] = struct{}{}
	if !n.Read {
		s.unread++
	}
	s.lastUpdated = s.now()
	s.mu.Unlock()

	if s.alerter != nil {
		s.alerter.Alert(n)
	}
	return true
}

// Merge replaces the feed with the server's view.
func (s *NotificationStore) Merge(page domain.NotificationPage) {
	items := append([]domain.Notification(nil), page.Items...)
	known := make(map[string]struct{}, len(items))
	for _, n := range items {
		known[n.ID] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = items
	s.known = known
	s.unread = page.CountUnread()
	s.lastUpdated = s.now()
}

// MarkRead flips the notification to read locally and then tells the server.
// A server failure is logged and left for the next Merge to correct; the
// returned error is informational.
func (s *NotificationStore) MarkRead(ctx context.Context, id string) error {
	s.mu.Lock()
	for i := range s.items {
		if s.items[i].ID != id {
			continue
		}
		if !s.items[i].Read {
			s.items[i].Read = true
			s.unread = max(0, s.unread-1)
		}
		break
	}
	s.mu.Unlock()

	if err := s.api.MarkNotificationRead(ctx, id); err != nil {
		s.logger.Warn("failed to mark notification as read", "notification_id", id, "error", err)
		return fmt.Errorf("mark notification %s read: %w", id, err)
	}
	return nil
}

// Refresh fetches the feed and merges it.
func (s *NotificationStore) Refresh(ctx context.Context) error {
	page, err := s.api.ListNotifications(ctx)
	if err != nil {
		s.logger.Warn("failed to refresh notifications", "error", err)
		return fmt.Errorf("list notifications: %w", err)
	}

	if page == nil {
		page = &domain.NotificationPage{}
	}
	s.Merge(*page)

	snap := s.Snapshot()
	s.logger.Debug("notifications refreshed",
		"total", len(snap.Notifications),
		"unread", snap.UnreadCount,
	)
	return nil
}

// Snapshot returns a copy of the current feed.
func (s *NotificationStore) Snapshot() NotificationSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := NotificationSnapshot{
		Notifications: append([]domain.Notification{}, s.items...),
		UnreadCount:   s.unread,
	}
	if !s.lastUpdated.IsZero() {
		t := s.lastUpdated
		snap.LastUpdated = &t
	}
	return snap
}
