package services

import (
	"log/slog"
	"sync"

	"github.com/lorrc/service-desk-realtime/internal/core/domain"
	"github.com/lorrc/service-desk-realtime/internal/core/ports"
	"github.com/lorrc/service-desk-realtime/internal/infrastructure/logging"
)

// RoomManager joins the per-user room, and the staff room for privileged
// identities, every time a channel connects.
type RoomManager struct {
	identity ports.IdentitySource
	logger   *slog.Logger

	mu     sync.Mutex
	joined map[string]domain.Identity // handle id -> identity it joined as
}

// NewRoomManager creates a room manager.
func NewRoomManager(identity ports.IdentitySource, logger *slog.Logger) *RoomManager {
	return &RoomManager{
		identity: identity,
		logger:   logging.Component(logger, "rooms"),
		joined:   make(map[string]domain.Identity),
	}
}

// HandleState reacts to channel lifecycle transitions.
func (m *RoomManager) HandleState(ch ports.Channel, state domain.ConnectionState) {
	switch {
	case state == domain.StateClosing:
		m.leave(ch)
	case state.IsOpen():
		m.join(ch)
	default:
		// The socket is gone; the server already dropped our memberships.
		m.mu.Lock()
		delete(m.joined, ch.ID())
		m.mu.Unlock()
	}
}

func (m *RoomManager) join(ch ports.Channel) {
	m.mu.Lock()
	if _, ok := m.joined[ch.ID()]; ok {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	identity, err := m.identity.Identity()
	if err != nil {
		m.logger.Debug("room join skipped, identity unknown", "connection_id", ch.ID(), "error", err)
		return
	}

	m.emit(ch, domain.JoinUser(identity.UserID))
	if identity.IsPrivileged() {
		m.emit(ch, domain.JoinAdmin())
	}

	m.mu.Lock()
	m.joined[ch.ID()] = identity
	m.mu.Unlock()
}

func (m *RoomManager) leave(ch ports.Channel) {
	m.mu.Lock()
	identity, ok := m.joined[ch.ID()]
	delete(m.joined, ch.ID())
	m.mu.Unlock()
	if !ok {
		return
	}

	if identity.IsPrivileged() {
		m.emit(ch, domain.LeaveAdmin())
	}
	m.emit(ch, domain.LeaveUser(identity.UserID))
}

func (m *RoomManager) emit(ch ports.Channel, cmd domain.Command) {
	if err := ch.Emit(cmd); err != nil {
		m.logger.Debug("room command not sent", "type", cmd.Type, "connection_id", ch.ID(), "error", err)
	}
}
