package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lorrc/service-desk-realtime/internal/core/domain"
	apperrors "github.com/lorrc/service-desk-realtime/internal/core/errors"
	"github.com/lorrc/service-desk-realtime/internal/core/ports"
	"github.com/lorrc/service-desk-realtime/internal/infrastructure/logging"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next message or pong from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024

	// Outbound commands buffered per connection.
	sendBuffer = 64
)

// authFailureMarkers are substrings of gateway error messages that mean the
// token itself was refused.
var authFailureMarkers = []string{
	"invalid or expired token",
	"invalid token",
	"expired token",
	"unauthorized",
	"authentication",
}

// handle is one logical push channel bound to one access token. It owns a
// connect loop that re-dials after transport failures.
type handle struct {
	id     string
	token  string
	sup    *Supervisor
	logger *slog.Logger
	// logCtx carries the connection id for log calls outside the run loop.
	logCtx context.Context

	mu      sync.Mutex
	state   domain.ConnectionState
	send    chan []byte
	running bool
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}
}

var _ ports.Channel = (*handle)(nil)

func newHandle(sup *Supervisor, token string) *handle {
	id := uuid.NewString()
	return &handle{
		id:     id,
		token:  token,
		sup:    sup,
		logger: sup.logger,
		logCtx: logging.WithConnectionID(context.Background(), id),
		state:  domain.StateDisconnected,
	}
}

func (h *handle) ID() string { return h.id }

func (h *handle) State() domain.ConnectionState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *handle) Connected() bool {
	return h.State().IsOpen()
}

// Emit queues a command on the live connection.
func (h *handle) Emit(cmd domain.Command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encode %s: %w", cmd.Type, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.send == nil {
		return apperrors.ErrNotConnected
	}

	select {
	case h.send <- data:
		return nil
	default:
		return fmt.Errorf("%w: send buffer full", apperrors.ErrTransportFailure)
	}
}

// start launches the connect loop unless it is already running.
func (h *handle) start(parent context.Context) {
	h.mu.Lock()
	if h.running || h.closed {
		h.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(logging.WithConnectionID(parent, h.id))
	h.running = true
	h.cancel = cancel
	h.done = make(chan struct{})
	done := h.done
	h.mu.Unlock()

	go func() {
		defer close(done)
		h.run(ctx)
	}()
}

func (h *handle) isRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// close announces closing so listeners can send their last commands, then
// stops the connect loop and waits for the socket to drain.
func (h *handle) close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	wasOpen := h.state.IsOpen()
	h.mu.Unlock()

	if wasOpen {
		h.logger.DebugContext(h.logCtx, "channel closing")
		h.sup.bus.publishState(h, domain.StateClosing)
	}

	h.mu.Lock()
	h.closed = true
	cancel, done := h.cancel, h.done
	h.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()

	select {
	case <-done:
	case <-time.After(writeWait):
		h.logger.WarnContext(h.logCtx, "channel did not close in time")
	}
}

func (h *handle) run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		h.running = false
		h.mu.Unlock()
	}()

	cfg := h.sup.cfg
	failures := 0

	for {
		if ctx.Err() != nil {
			h.setState(domain.StateDisconnected)
			return
		}

		h.setState(domain.StateConnecting)
		conn, err := h.dial(ctx)
		if err == nil {
			failures = 0
			err = h.serve(ctx, conn)
		}

		if ctx.Err() != nil || err == nil {
			h.setState(domain.StateDisconnected)
			return
		}

		if errors.Is(err, apperrors.ErrAuthRejected) {
			h.logger.WarnContext(ctx, "channel authentication rejected", "error", err)
			h.setState(domain.StateAuthError)
			h.sup.authRejected(h)
			return
		}

		failures++
		if failures > cfg.ReconnectAttempts {
			h.logger.ErrorContext(ctx, "channel reconnect attempts exhausted",
				"attempts", cfg.ReconnectAttempts,
				"error", err,
			)
			h.setState(domain.StateDisconnected)
			return
		}

		h.logger.WarnContext(ctx, "channel transport failure, reconnecting",
			"attempt", failures,
			"max_attempts", cfg.ReconnectAttempts,
			"delay", cfg.ReconnectDelay,
			"error", err,
		)
		h.setState(domain.StateDisconnected)

		select {
		case <-ctx.Done():
			return
		case <-time.After(cfg.ReconnectDelay):
		}
	}
}

func (h *handle) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(h.sup.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse url: %v", apperrors.ErrTransportFailure, err)
	}
	q := u.Query()
	q.Set("token", h.token)
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+h.token)

	conn, resp, err := h.sup.dialer.DialContext(ctx, u.String(), header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: handshake status %d", apperrors.ErrAuthRejected, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrTransportFailure, err)
	}
	return conn, nil
}

// serve runs the pumps for one connection and returns why it ended.
func (h *handle) serve(ctx context.Context, conn *websocket.Conn) error {
	send := make(chan []byte, sendBuffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	h.send = send
	h.mu.Unlock()

	h.logger.InfoContext(ctx, "channel connected")
	h.setState(domain.StateConnected)

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		h.writePump(conn, send)
	}()

	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			h.closeSend(send)
		case <-stop:
		}
	}()

	err := h.readPump(conn)

	close(stop)
	h.closeSend(send)
	<-writeDone
	_ = conn.Close()
	return err
}

// closeSend detaches and closes the send channel of one connection. The
// write pump then flushes what is queued and sends a close frame.
func (h *handle) closeSend(send chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.send == send {
		h.send = nil
		close(send)
	}
}

// readPump pumps frames from the connection to the bus.
func (h *handle) readPump(conn *websocket.Conn) error {
	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrTransportFailure, err)
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				h.logger.WarnContext(h.logCtx, "websocket read error", "error", err)
			}
			return fmt.Errorf("%w: %v", apperrors.ErrTransportFailure, err)
		}

		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		if err := h.dispatch(message); err != nil {
			return err
		}
	}
}

// writePump pumps queued commands to the connection.
func (h *handle) writePump(conn *websocket.Conn, send <-chan []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case data, ok := <-send:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				h.logger.ErrorContext(h.logCtx, "failed to set write deadline", "error", err)
				return
			}

			if !ok {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				if err := conn.WriteMessage(websocket.CloseMessage, msg); err != nil {
					h.logger.DebugContext(h.logCtx, "failed to send close message", "error", err)
				}
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.ErrorContext(h.logCtx, "failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				h.logger.ErrorContext(h.logCtx, "failed to set write deadline for ping", "error", err)
				return
			}

			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.logger.DebugContext(h.logCtx, "failed to send ping", "error", err)
				return
			}
		}
	}
}

// dispatch decodes one frame and publishes it. It returns an error only when
// the connection must be dropped.
func (h *handle) dispatch(message []byte) error {
	var env domain.Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		h.logger.WarnContext(h.logCtx, "failed to unmarshal server message", "error", err)
		return nil
	}

	event, err := domain.DecodeEvent(env)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnknownEvent) {
			h.logger.DebugContext(h.logCtx, "received unknown message type", "type", env.Type)
		} else {
			h.logger.WarnContext(h.logCtx, "dropping malformed event", "type", env.Type, "error", err)
		}
		return nil
	}

	if se, ok := event.(domain.ServerError); ok {
		if isAuthFailure(se.Message) {
			return fmt.Errorf("%w: %s", apperrors.ErrAuthRejected, se.Message)
		}
		h.logger.WarnContext(h.logCtx, "server error event", "message", se.Message)
	}

	if h.stale() {
		return nil
	}
	h.sup.bus.publish(h, event)
	return nil
}

func isAuthFailure(message string) bool {
	lower := strings.ToLower(message)
	for _, marker := range authFailureMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// stale reports whether the handle was torn down or replaced.
func (h *handle) stale() bool {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	return closed || !h.sup.isCurrent(h)
}

func (h *handle) setState(state domain.ConnectionState) {
	h.mu.Lock()
	if h.state == state {
		h.mu.Unlock()
		return
	}
	h.state = state
	closed := h.closed
	h.mu.Unlock()

	if closed {
		return
	}
	h.logger.DebugContext(h.logCtx, "channel state changed", "state", state)
	h.sup.bus.publishState(h, state)
}

// setHealth moves between connected and degraded.
func (h *handle) setHealth(healthy bool) {
	switch state := h.State(); {
	case healthy && state == domain.StateDegraded:
		h.setState(domain.StateConnected)
	case !healthy && state == domain.StateConnected:
		h.setState(domain.StateDegraded)
	}
}
