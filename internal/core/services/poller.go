package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/lorrc/service-desk-realtime/internal/core/domain"
	"github.com/lorrc/service-desk-realtime/internal/core/ports"
	"github.com/lorrc/service-desk-realtime/internal/infrastructure/logging"
)

const (
	DefaultPollInterval     = 30 * time.Second
	DefaultRefreshRateLimit = 2 * time.Second
)

// Poller refreshes on a fixed interval whatever the channel health is, and
// on demand through Trigger. Triggers that arrive while one is pending are
// merged, and consecutive triggered refreshes are spaced by a rate limiter.
type Poller struct {
	refresher ports.Refresher
	interval  time.Duration
	limiter   *rate.Limiter
	trigger   chan struct{}
	logger    *slog.Logger
	now       func() time.Time

	mu     sync.RWMutex
	status domain.SyncStatus
}

var _ ports.RefreshTrigger = (*Poller)(nil)

// NewPoller creates a poller. minGap bounds how often triggers may refresh.
func NewPoller(refresher ports.Refresher, interval, minGap time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	limit := rate.Inf
	if minGap > 0 {
		limit = rate.Every(minGap)
	}
	return &Poller{
		refresher: refresher,
		interval:  interval,
		limiter:   rate.NewLimiter(limit, 1),
		trigger:   make(chan struct{}, 1),
		logger:    logging.Component(logger, "poller"),
		now:       time.Now,
		status:    domain.SyncStatus{State: domain.SyncIdle},
	}
}

// Run refreshes immediately, then on every tick and trigger until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.limiter.Allow()
	p.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.runOnce(ctx)
		case <-p.trigger:
			if err := p.limiter.Wait(ctx); err != nil {
				return nil
			}
			p.runOnce(ctx)
		}
	}
}

// Trigger requests a refresh without blocking.
func (p *Poller) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Status returns the last refresh outcome.
func (p *Poller) Status() domain.SyncStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

func (p *Poller) runOnce(ctx context.Context) {
	p.setStatus(func(s *domain.SyncStatus) { s.State = domain.SyncRunning })

	err := p.refresher.Refresh(ctx)
	now := p.now()

	p.setStatus(func(s *domain.SyncStatus) {
		if err != nil {
			s.State = domain.SyncError
			s.Error = err.Error()
			return
		}
		s.State = domain.SyncIdle
		s.Error = ""
		s.LastSync = &now
	})

	if err != nil && ctx.Err() == nil {
		p.logger.Warn("fallback refresh failed", "error", err)
	}
}

func (p *Poller) setStatus(fn func(s *domain.SyncStatus)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.status)
}
