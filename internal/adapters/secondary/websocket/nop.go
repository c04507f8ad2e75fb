package websocket

import (
	"github.com/lorrc/service-desk-realtime/internal/core/domain"
	apperrors "github.com/lorrc/service-desk-realtime/internal/core/errors"
	"github.com/lorrc/service-desk-realtime/internal/core/ports"
)

// NopChannel is handed out while there is no credential. It never connects
// and drops every command.
type NopChannel struct{}

var _ ports.Channel = NopChannel{}

func (NopChannel) ID() string                    { return "" }
func (NopChannel) State() domain.ConnectionState { return domain.StateDisconnected }
func (NopChannel) Connected() bool               { return false }
func (NopChannel) Emit(domain.Command) error     { return apperrors.ErrNotConnected }
