package domain

import (
	"encoding/json"
	"fmt"
	"time"

	apperrors "github.com/lorrc/service-desk-realtime/internal/core/errors"
)

// EventKind is the discriminant of an inbound push event.
type EventKind string

const (
	KindNotificationNew    EventKind = "notification:new"
	KindPong               EventKind = "pong"
	KindTicketCreated      EventKind = "ticket:created"
	KindTicketUpdated      EventKind = "ticket:updated"
	KindTicketMessage      EventKind = "ticket:message"
	KindAppointmentCreated EventKind = "appointment:created"
	KindAppointmentUpdated EventKind = "appointment:updated"
	KindServerError        EventKind = "error"
)

// Envelope is the wire format for every frame in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// InboundEvent is the closed set of events the server pushes.
// Only types in this package implement it.
type InboundEvent interface {
	Kind() EventKind
	inbound()
}

// NotificationNew carries a freshly created notification.
type NotificationNew struct {
	Notification Notification
}

// Pong acknowledges a ping.
type Pong struct {
	ServerTime string `json:"serverTime,omitempty"`
	ClientID   string `json:"clientId,omitempty"`
}

// TicketCreated is pushed when a ticket is opened.
type TicketCreated struct {
	TicketID   string
	CustomerID string
}

// TicketUpdated is pushed when a ticket changes.
type TicketUpdated struct {
	TicketID string
}

// TicketMessage is pushed when a chat message is posted on a ticket.
type TicketMessage struct {
	TicketID   string
	FromUserID string
}

// AppointmentChanged is pushed on appointment create and update.
type AppointmentChanged struct {
	Created       bool
	AppointmentID string
	TicketID      string
}

// ServerError is an error frame sent by the gateway.
type ServerError struct {
	Message string `json:"message"`
}

func (NotificationNew) Kind() EventKind { return KindNotificationNew }
func (Pong) Kind() EventKind            { return KindPong }
func (TicketCreated) Kind() EventKind   { return KindTicketCreated }
func (TicketUpdated) Kind() EventKind   { return KindTicketUpdated }
func (TicketMessage) Kind() EventKind   { return KindTicketMessage }
func (ServerError) Kind() EventKind     { return KindServerError }

func (e AppointmentChanged) Kind() EventKind {
	if e.Created {
		return KindAppointmentCreated
	}
	return KindAppointmentUpdated
}

func (NotificationNew) inbound()    {}
func (Pong) inbound()               {}
func (TicketCreated) inbound()      {}
func (TicketUpdated) inbound()      {}
func (TicketMessage) inbound()      {}
func (AppointmentChanged) inbound() {}
func (ServerError) inbound()        {}

// rawRef tolerates both string and numeric ids, and the alternate field
// names used by different server emitters.
type rawRef struct {
	ID            flexID `json:"id"`
	TicketID      flexID `json:"ticketId"`
	AppointmentID flexID `json:"appointmentId"`
	CustomerID    flexID `json:"customerId"`
	FromUserID    flexID `json:"fromUserId"`
	UserID        flexID `json:"userId"`
}

type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

func firstNonEmpty(values ...flexID) string {
	for _, v := range values {
		if v != "" {
			return string(v)
		}
	}
	return ""
}

// DecodeEvent maps a wire envelope to its typed event.
func DecodeEvent(env Envelope) (InboundEvent, error) {
	kind := EventKind(env.Type)
	payload := env.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}

	switch kind {
	case KindNotificationNew:
		var n Notification
		if err := json.Unmarshal(payload, &n); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrMalformedEvent, kind, err)
		}
		if n.ID == "" {
			return nil, fmt.Errorf("%w: %s: missing id", apperrors.ErrMalformedEvent, kind)
		}
		return NotificationNew{Notification: n}, nil

	case KindPong:
		var p Pong
		_ = json.Unmarshal(payload, &p)
		return p, nil

	case KindServerError:
		var e ServerError
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrMalformedEvent, kind, err)
		}
		return e, nil

	case KindTicketCreated, KindTicketUpdated, KindTicketMessage,
		KindAppointmentCreated, KindAppointmentUpdated:
		var ref rawRef
		if err := json.Unmarshal(payload, &ref); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrMalformedEvent, kind, err)
		}
		return decodeEntityEvent(kind, ref), nil

	default:
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownEvent, env.Type)
	}
}

func decodeEntityEvent(kind EventKind, ref rawRef) InboundEvent {
	switch kind {
	case KindTicketCreated:
		return TicketCreated{
			TicketID:   firstNonEmpty(ref.ID, ref.TicketID),
			CustomerID: string(ref.CustomerID),
		}
	case KindTicketUpdated:
		return TicketUpdated{TicketID: firstNonEmpty(ref.ID, ref.TicketID)}
	case KindTicketMessage:
		return TicketMessage{
			TicketID:   string(ref.TicketID),
			FromUserID: firstNonEmpty(ref.FromUserID, ref.UserID),
		}
	default:
		return AppointmentChanged{
			Created:       kind == KindAppointmentCreated,
			AppointmentID: firstNonEmpty(ref.ID, ref.AppointmentID),
			TicketID:      string(ref.TicketID),
		}
	}
}

// Command is an outbound frame.
type Command struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type userRoomPayload struct {
	UserID string `json:"userId"`
}

type pingPayload struct {
	TS int64 `json:"ts"`
}

// JoinUser subscribes the channel to the per-user room.
func JoinUser(userID string) Command {
	return Command{Type: "join-user", Payload: userRoomPayload{UserID: userID}}
}

// LeaveUser leaves the per-user room.
func LeaveUser(userID string) Command {
	return Command{Type: "leave-user", Payload: userRoomPayload{UserID: userID}}
}

// JoinAdmin subscribes the channel to the shared staff room.
func JoinAdmin() Command {
	return Command{Type: "join-admin"}
}

// LeaveAdmin leaves the shared staff room.
func LeaveAdmin() Command {
	return Command{Type: "leave-admin"}
}

// Ping is a heartbeat probe stamped with the send time in milliseconds.
func Ping(at time.Time) Command {
	return Command{Type: "ping", Payload: pingPayload{TS: at.UnixMilli()}}
}

// ReadSignal tells other sessions of the same user that an entity was viewed.
func ReadSignal(entityType EntityType, id, userID string) Command {
	payload := map[string]string{"id": id}
	if userID != "" {
		payload["userId"] = userID
	}

	var name string
	switch entityType {
	case EntityChat:
		name = "ticket:message:read"
		payload["conversationId"] = id
	case EntityAppointment:
		name = "appointment:read"
		payload["appointmentId"] = id
	default:
		name = "ticket:read"
		payload["ticketId"] = id
	}
	return Command{Type: name, Payload: payload}
}
