package websocket

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lorrc/service-desk-realtime/internal/core/domain"
	"github.com/lorrc/service-desk-realtime/internal/core/ports"
	"github.com/lorrc/service-desk-realtime/internal/infrastructure/logging"
)

// Credentials is what the supervisor needs from the credential source.
type Credentials interface {
	AccessToken() string
	Load(ctx context.Context) error
	Refresh(ctx context.Context) (domain.Credential, error)
	Subscribe(fn func(domain.Credential)) (dispose func())
}

// Config holds push channel settings.
type Config struct {
	URL                string
	ReconnectAttempts  int
	ReconnectDelay     time.Duration
	TokenCheckInterval time.Duration
	HandshakeTimeout   time.Duration
	ReadBufferSize     int
	WriteBufferSize    int
}

// DefaultConfig returns the production settings for the given URL.
func DefaultConfig(url string) Config {
	return Config{
		URL:                url,
		ReconnectAttempts:  5,
		ReconnectDelay:     time.Second,
		TokenCheckInterval: 2 * time.Minute,
		HandshakeTimeout:   10 * time.Second,
		ReadBufferSize:     1024,
		WriteBufferSize:    1024,
	}
}

// Supervisor keeps at most one live handle, bound to the current access
// token, and re-binds when the token changes.
type Supervisor struct {
	cfg    Config
	creds  Credentials
	dialer *websocket.Dialer
	bus    *Bus
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	current *handle
}

var _ ports.ChannelSupervisor = (*Supervisor)(nil)

// NewSupervisor creates a supervisor. No connection is made until Acquire.
func NewSupervisor(cfg Config, creds Credentials, logger *slog.Logger) *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		cfg:   cfg,
		creds: creds,
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: cfg.HandshakeTimeout,
			ReadBufferSize:   cfg.ReadBufferSize,
			WriteBufferSize:  cfg.WriteBufferSize,
		},
		bus:    NewBus(),
		logger: logging.Component(logger, "channel"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Acquire returns the handle for the current token, creating, restarting or
// replacing it as needed. Without a token it returns NopChannel.
func (s *Supervisor) Acquire(ctx context.Context) ports.Channel {
	token := s.creds.AccessToken()
	if token == "" {
		if err := s.creds.Load(ctx); err != nil {
			s.logger.Debug("credential load failed", "error", err)
		}
		token = s.creds.AccessToken()
	}

	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		return NopChannel{}
	}

	if token == "" {
		old := s.current
		s.current = nil
		s.mu.Unlock()
		if old != nil {
			s.logger.Info("no credential, closing channel")
			old.close()
		}
		return NopChannel{}
	}

	if h := s.current; h != nil && h.token == token {
		s.mu.Unlock()
		if !h.isRunning() {
			s.logger.Info("restarting channel connect loop", "connection_id", h.id)
			h.start(s.ctx)
		}
		return h
	}

	old := s.current
	h := newHandle(s, token)
	s.current = h
	s.mu.Unlock()

	if old != nil {
		s.logger.Info("access token changed, replacing channel", "old_connection_id", old.id)
		old.close()
	}
	h.start(s.ctx)
	return h
}

// Current returns the bound handle without reconciling it.
func (s *Supervisor) Current() ports.Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return NopChannel{}
	}
	return s.current
}

// ReportHealth moves the bound handle between connected and degraded.
func (s *Supervisor) ReportHealth(healthy bool) {
	s.mu.Lock()
	h := s.current
	s.mu.Unlock()
	if h != nil {
		h.setHealth(healthy)
	}
}

// Subscribe registers an event listener that survives handle replacement.
func (s *Supervisor) Subscribe(kind domain.EventKind, h ports.EventHandler) (dispose func()) {
	return s.bus.Subscribe(kind, h)
}

// OnState registers a lifecycle listener that survives handle replacement.
func (s *Supervisor) OnState(h ports.StateHandler) (dispose func()) {
	return s.bus.OnState(h)
}

// Watch acquires a channel now, on every token change, and every
// TokenCheckInterval until ctx is done.
func (s *Supervisor) Watch(ctx context.Context) error {
	dispose := s.creds.Subscribe(func(domain.Credential) {
		s.Acquire(ctx)
	})
	defer dispose()

	s.Acquire(ctx)

	interval := s.cfg.TokenCheckInterval
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Acquire(ctx)
		}
	}
}

// Shutdown closes the bound handle. Later Acquire calls return NopChannel.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	h := s.current
	s.current = nil
	s.mu.Unlock()

	if h != nil {
		h.close()
	}
	s.cancel()
}

func (s *Supervisor) isCurrent(h *handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current == h
}

// authRejected unbinds a handle whose token was refused and tries one token
// refresh. A new token re-binds through the credential subscription; a
// failed refresh clears the credential and leaves the channel inert.
func (s *Supervisor) authRejected(h *handle) {
	s.mu.Lock()
	if s.current == h {
		s.current = nil
	}
	s.mu.Unlock()

	go func() {
		if _, err := s.creds.Refresh(s.ctx); err != nil {
			s.logger.Warn("credential refresh after rejection failed", "error", err)
		}
	}()
}
