package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lorrc/service-desk-realtime/internal/core/domain"
	"github.com/lorrc/service-desk-realtime/internal/core/ports"
	"github.com/lorrc/service-desk-realtime/internal/infrastructure/logging"
)

const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultHeartbeatTimeout  = 15 * time.Second
)

// HeartbeatMonitor probes the push channel with application-level pings.
// A missing pong marks the channel degraded and triggers a fallback refresh.
type HeartbeatMonitor struct {
	channels ports.ChannelProvider
	trigger  ports.RefreshTrigger
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
	pingReq  chan struct{}

	mu        sync.Mutex
	record    domain.HeartbeatRecord
	connected bool
	pending   *time.Timer
	probeSeq  uint64
	failures  int
	threshold int
}

// NewHeartbeatMonitor creates a monitor. The channel starts out assumed healthy.
func NewHeartbeatMonitor(
	channels ports.ChannelProvider,
	trigger ports.RefreshTrigger,
	interval, timeout time.Duration,
	logger *slog.Logger,
) *HeartbeatMonitor {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	if timeout <= 0 {
		timeout = DefaultHeartbeatTimeout
	}
	return &HeartbeatMonitor{
		channels:  channels,
		trigger:   trigger,
		interval:  interval,
		timeout:   timeout,
		logger:    logging.Component(logger, "heartbeat"),
		now:       time.Now,
		pingReq:   make(chan struct{}, 1),
		record:    domain.HeartbeatRecord{Healthy: true},
		threshold: 1,
	}
}

// SetFailureThreshold sets how many consecutive failed probes flip the
// channel to unhealthy. Values below 1 are treated as 1.
func (h *HeartbeatMonitor) SetFailureThreshold(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.threshold = max(1, n)
}

// Run probes immediately, then every interval and whenever a fresh
// connection asks for it, until ctx is done.
func (h *HeartbeatMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer func() {
		ticker.Stop()
		h.disarm()
	}()

	h.Probe()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			h.Probe()
		case <-h.pingReq:
			h.Probe()
		}
	}
}

// Probe sends one ping and arms the timeout. An unconnected channel is
// reported unhealthy straight away.
func (h *HeartbeatMonitor) Probe() {
	ch := h.channels.Current()
	if !ch.Connected() {
		h.mu.Lock()
		h.connected = false
		h.mu.Unlock()
		h.disarm()
		h.setHealthy(false)
		h.trigger.Trigger()
		return
	}

	sentAt := h.now()
	if err := ch.Emit(domain.Ping(sentAt)); err != nil {
		h.logger.Debug("ping not sent", "connection_id", ch.ID(), "error", err)
		h.probeFailed()
		return
	}

	h.mu.Lock()
	h.connected = true
	h.record.LastProbeSentAt = sentAt
	if h.pending != nil {
		h.pending.Stop()
	}
	h.probeSeq++
	seq := h.probeSeq
	h.pending = time.AfterFunc(h.timeout, func() { h.expire(seq) })
	h.mu.Unlock()
}

func (h *HeartbeatMonitor) expire(seq uint64) {
	h.mu.Lock()
	if seq != h.probeSeq || h.pending == nil {
		h.mu.Unlock()
		return
	}
	h.pending = nil
	h.mu.Unlock()

	h.logger.Warn("heartbeat timed out", "timeout", h.timeout)
	h.probeFailed()
}

func (h *HeartbeatMonitor) probeFailed() {
	h.mu.Lock()
	h.failures++
	tripped := h.failures >= h.threshold
	h.mu.Unlock()

	if tripped {
		h.setHealthy(false)
	}
	h.trigger.Trigger()
}

// HandlePong settles the outstanding probe.
func (h *HeartbeatMonitor) HandlePong(_ ports.Channel, _ domain.InboundEvent) {
	now := h.now()

	h.mu.Lock()
	if h.pending != nil {
		h.pending.Stop()
		h.pending = nil
	}
	h.connected = true
	h.failures = 0
	h.record.LastAckAt = now
	h.mu.Unlock()

	h.setHealthy(true)
}

// HandleState follows the channel lifecycle. A fresh connection is probed
// by Run right away instead of waiting for the next tick.
func (h *HeartbeatMonitor) HandleState(_ ports.Channel, state domain.ConnectionState) {
	h.mu.Lock()
	wasConnected := h.connected
	h.connected = state.IsOpen()
	h.mu.Unlock()

	switch {
	case state == domain.StateConnected && !wasConnected:
		select {
		case h.pingReq <- struct{}{}:
		default:
		}
	case !state.IsOpen():
		h.disarm()
	}
}

// State returns the public heartbeat view.
func (h *HeartbeatMonitor) State() domain.HeartbeatState {
	h.mu.Lock()
	defer h.mu.Unlock()

	state := domain.HeartbeatState{
		Connected: h.connected,
		Healthy:   h.record.Healthy,
	}
	if !h.record.LastAckAt.IsZero() {
		t := h.record.LastAckAt
		state.LastHeartbeatAt = &t
	}
	return state
}

// Status derives offline/degraded/live.
func (h *HeartbeatMonitor) Status() domain.ConnectionStatus {
	return h.State().Status()
}

// Record returns the last probe outcome.
func (h *HeartbeatMonitor) Record() domain.HeartbeatRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.record
}

// setHealthy records the outcome. Failures are always reported because the
// handle may have been replaced since health last flipped.
func (h *HeartbeatMonitor) setHealthy(healthy bool) {
	h.mu.Lock()
	changed := h.record.Healthy != healthy
	h.record.Healthy = healthy
	h.mu.Unlock()

	if changed {
		h.logger.Info("channel health changed", "healthy", healthy)
	}
	if changed || !healthy {
		h.channels.ReportHealth(healthy)
	}
}

func (h *HeartbeatMonitor) disarm() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pending != nil {
		h.pending.Stop()
		h.pending = nil
	}
}
