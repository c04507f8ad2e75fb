package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lorrc/service-desk-realtime/internal/core/domain"
	"github.com/lorrc/service-desk-realtime/internal/core/ports"
	"github.com/lorrc/service-desk-realtime/internal/infrastructure/logging"
)

// Hooks are optional observers for debugging and tests.
type Hooks struct {
	OnEvent   func(event domain.InboundEvent)
	OnRefresh func(snap NotificationSnapshot, err error)
}

// RealtimeOptions configures the sync components.
type RealtimeOptions struct {
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	PollInterval      time.Duration
	RefreshRateLimit  time.Duration
	HighlightDuration time.Duration
	FailureThreshold  int
	Ledger            LedgerOptions
	Hooks             Hooks
}

// DefaultRealtimeOptions returns the production timings.
func DefaultRealtimeOptions() RealtimeOptions {
	return RealtimeOptions{
		HeartbeatInterval: DefaultHeartbeatInterval,
		HeartbeatTimeout:  DefaultHeartbeatTimeout,
		PollInterval:      DefaultPollInterval,
		RefreshRateLimit:  DefaultRefreshRateLimit,
		HighlightDuration: DefaultHighlightDuration,
		FailureThreshold:  1,
		Ledger:            DefaultLedgerOptions(),
	}
}

// Realtime wires the push channel, heartbeat, poller and client stores
// together and exposes the UI-facing views.
type Realtime struct {
	creds      *CredentialSource
	supervisor ports.ChannelSupervisor
	store      *NotificationStore
	ledger     *UnreadLedger
	heartbeat  *HeartbeatMonitor
	rooms      *RoomManager
	poller     *Poller
	hooks      Hooks
	logger     *slog.Logger

	mu        sync.Mutex
	disposers []func()
}

var _ ports.RealtimeService = (*Realtime)(nil)

// NewRealtime builds every component around the given supervisor and API.
func NewRealtime(
	creds *CredentialSource,
	supervisor ports.ChannelSupervisor,
	api ports.NotificationAPI,
	alerter ports.Alerter,
	opts RealtimeOptions,
	logger *slog.Logger,
) *Realtime {
	r := &Realtime{
		creds:      creds,
		supervisor: supervisor,
		hooks:      opts.Hooks,
		logger:     logging.Component(logger, "realtime"),
	}

	r.store = NewNotificationStore(api, alerter, logger)
	r.ledger = NewUnreadLedger(supervisor, creds, opts.Ledger, opts.HighlightDuration, logger)
	r.rooms = NewRoomManager(creds, logger)
	r.poller = NewPoller(refresherFunc(r.refresh), opts.PollInterval, opts.RefreshRateLimit, logger)
	r.heartbeat = NewHeartbeatMonitor(supervisor, r.poller, opts.HeartbeatInterval, opts.HeartbeatTimeout, logger)
	r.heartbeat.SetFailureThreshold(opts.FailureThreshold)

	return r
}

// Run loads the credential, binds listeners and runs the channel watcher,
// heartbeat and poller until ctx is done or one of them fails.
func (r *Realtime) Run(ctx context.Context) error {
	if err := r.creds.Load(ctx); err != nil {
		r.logger.Warn("could not load stored credential", "error", err)
	}

	r.bind()
	defer r.unbind()
	defer r.supervisor.Shutdown()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.supervisor.Watch(gctx) })
	g.Go(func() error { return r.heartbeat.Run(gctx) })
	g.Go(func() error { return r.poller.Run(gctx) })

	r.logger.Info("realtime sync started")
	err := g.Wait()
	r.logger.Info("realtime sync stopped")
	return err
}

func (r *Realtime) bind() {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub := func(kind domain.EventKind, h ports.EventHandler) {
		r.disposers = append(r.disposers, r.supervisor.Subscribe(kind, r.observe(h)))
	}

	sub(domain.KindNotificationNew, func(_ ports.Channel, e domain.InboundEvent) {
		if n, ok := e.(domain.NotificationNew); ok {
			r.store.ApplyPush(n.Notification)
		}
	})
	sub(domain.KindPong, r.heartbeat.HandlePong)
	for _, kind := range []domain.EventKind{
		domain.KindTicketCreated,
		domain.KindTicketUpdated,
		domain.KindTicketMessage,
		domain.KindAppointmentCreated,
		domain.KindAppointmentUpdated,
	} {
		sub(kind, r.ledger.HandleEvent)
	}

	r.disposers = append(r.disposers,
		r.supervisor.OnState(r.rooms.HandleState),
		r.supervisor.OnState(r.heartbeat.HandleState),
	)
}

func (r *Realtime) unbind() {
	r.mu.Lock()
	disposers := r.disposers
	r.disposers = nil
	r.mu.Unlock()

	for _, dispose := range disposers {
		dispose()
	}
}

func (r *Realtime) observe(h ports.EventHandler) ports.EventHandler {
	return func(ch ports.Channel, e domain.InboundEvent) {
		h(ch, e)
		if r.hooks.OnEvent != nil {
			r.hooks.OnEvent(e)
		}
	}
}

func (r *Realtime) refresh(ctx context.Context) error {
	err := r.store.Refresh(ctx)
	if r.hooks.OnRefresh != nil {
		r.hooks.OnRefresh(r.store.Snapshot(), err)
	}
	return err
}

// NotificationView returns the feed together with the connection indicator.
func (r *Realtime) NotificationView() domain.NotificationView {
	snap := r.store.Snapshot()
	hb := r.heartbeat.State()
	return domain.NotificationView{
		Notifications:    snap.Notifications,
		UnreadCount:      snap.UnreadCount,
		ConnectionStatus: hb.Status(),
		LastUpdated:      snap.LastUpdated,
		LastHeartbeatAt:  hb.LastHeartbeatAt,
	}
}

// MarkAsRead marks one notification read. The error is informational; the
// local state has already changed.
func (r *Realtime) MarkAsRead(ctx context.Context, id string) error {
	return r.store.MarkRead(ctx, id)
}

// RefreshNow asks the poller for an immediate refresh.
func (r *Realtime) RefreshNow() {
	r.poller.Trigger()
}

// UnreadView returns the unread counters and entries.
func (r *Realtime) UnreadView() domain.UnreadView {
	return r.ledger.View()
}

func (r *Realtime) IsUnread(t domain.EntityType, id string) bool {
	return r.ledger.IsUnread(t, id)
}

func (r *Realtime) IsHighlighted(t domain.EntityType, id string) bool {
	return r.ledger.IsHighlighted(t, id)
}

// MarkEntityRead clears the entity's unread marker.
func (r *Realtime) MarkEntityRead(t domain.EntityType, id string) error {
	return r.ledger.Clear(t, id)
}

// SyncStatus returns the poller status.
func (r *Realtime) SyncStatus() domain.SyncStatus {
	return r.poller.Status()
}

// Heartbeat returns the heartbeat view.
func (r *Realtime) Heartbeat() domain.HeartbeatState {
	return r.heartbeat.State()
}

type refresherFunc func(ctx context.Context) error

func (f refresherFunc) Refresh(ctx context.Context) error { return f(ctx) }
