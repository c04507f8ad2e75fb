package alert

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lorrc/service-desk-realtime/internal/core/domain"
	"github.com/lorrc/service-desk-realtime/internal/core/ports"
	"github.com/lorrc/service-desk-realtime/internal/infrastructure/logging"
)

// DefaultDuration is how long an alert stays visible, and so how long a
// repeated id is suppressed.
const DefaultDuration = 5 * time.Second

// categories is checked in order; the first substring match wins.
var categories = []string{"ticket", "error", "warning", "success", "payment", "appointment"}

// Category maps a notification type onto an alert icon category.
func Category(notificationType string) string {
	t := strings.ToLower(notificationType)
	for _, c := range categories {
		if strings.Contains(t, c) {
			return c
		}
	}
	return "general"
}

// LogAlerter surfaces alerts as structured log lines. It stands in for a
// desktop toast and logs each notification id at most once per duration.
type LogAlerter struct {
	logger   *slog.Logger
	duration time.Duration
	now      func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time
}

var _ ports.Alerter = (*LogAlerter)(nil)

// NewLogAlerter creates an alerter. duration <= 0 selects DefaultDuration.
func NewLogAlerter(duration time.Duration, logger *slog.Logger) *LogAlerter {
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &LogAlerter{
		logger:   logging.Component(logger, "alert"),
		duration: duration,
		now:      time.Now,
		seen:     make(map[string]time.Time),
	}
}

// Alert logs n unless an alert with the same id is still showing.
func (a *LogAlerter) Alert(n domain.Notification) {
	now := a.now()

	a.mu.Lock()
	for id, until := range a.seen {
		if !now.Before(until) {
			delete(a.seen, id)
		}
	}
	if n.ID != "" {
		if _, showing := a.seen[n.ID]; showing {
			a.mu.Unlock()
			return
		}
		a.seen[n.ID] = now.Add(a.duration)
	}
	a.mu.Unlock()

	a.logger.Info("notification",
		"notification_id", n.ID,
		"category", Category(n.Type),
		"message", n.Message,
		"duration", a.duration,
	)
}
