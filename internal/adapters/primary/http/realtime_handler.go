package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lorrc/service-desk-realtime/internal/core/domain"
	apperrors "github.com/lorrc/service-desk-realtime/internal/core/errors"
	"github.com/lorrc/service-desk-realtime/internal/core/ports"
)

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Connection      domain.ConnectionStatus `json:"connection"`
	LastHeartbeatAt *time.Time              `json:"lastHeartbeatAt,omitempty"`
	LastUpdated     *time.Time              `json:"lastUpdated,omitempty"`
	UnreadCount     int                     `json:"unreadCount"`
	Sync            domain.SyncStatus       `json:"sync"`
}

// EntityResponse is the body of GET /unread/{type}/{id}.
type EntityResponse struct {
	Type        domain.EntityType `json:"type"`
	ID          string            `json:"id"`
	Unread      bool              `json:"unread"`
	Highlighted bool              `json:"highlighted"`
}

// RealtimeHandler exposes the realtime views to local UI clients.
type RealtimeHandler struct {
	service      ports.RealtimeService
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewRealtimeHandler creates a new RealtimeHandler.
func NewRealtimeHandler(
	service ports.RealtimeService,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *RealtimeHandler {
	return &RealtimeHandler{
		service:      service,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "realtime"),
	}
}

// RegisterRoutes registers the realtime routes.
func (h *RealtimeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/status", h.HandleStatus)

	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", h.HandleNotifications)
		r.Post("/refresh", h.HandleRefresh)
		r.Post("/{id}/read", h.HandleMarkRead)
	})

	r.Route("/unread", func(r chi.Router) {
		r.Get("/", h.HandleUnread)
		r.Get("/{type}/{id}", h.HandleEntity)
		r.Post("/{type}/{id}/read", h.HandleEntityRead)
	})
}

// HandleStatus handles GET /status.
func (h *RealtimeHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	view := h.service.NotificationView()
	WriteJSON(w, http.StatusOK, StatusResponse{
		Connection:      view.ConnectionStatus,
		LastHeartbeatAt: view.LastHeartbeatAt,
		LastUpdated:     view.LastUpdated,
		UnreadCount:     view.UnreadCount,
		Sync:            h.service.SyncStatus(),
	})
}

// HandleNotifications handles GET /notifications.
func (h *RealtimeHandler) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	view := h.service.NotificationView()
	if view.Notifications == nil {
		view.Notifications = []domain.Notification{}
	}
	WriteJSON(w, http.StatusOK, view)
}

// HandleRefresh handles POST /notifications/refresh. The refresh runs
// asynchronously and is rate limited by the poller.
func (h *RealtimeHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	h.service.RefreshNow()
	w.WriteHeader(http.StatusAccepted)
}

// HandleMarkRead handles POST /notifications/{id}/read. The local flip is
// applied even when the server call fails; that case answers 202 so the UI
// keeps its optimistic state and the next refresh reconciles it.
func (h *RealtimeHandler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.service.MarkAsRead(r.Context(), id)
	switch {
	case err == nil:
		WriteNoContent(w)
	case errors.Is(err, apperrors.ErrEntityIDRequired):
		h.errorHandler.Handle(w, r, err)
	default:
		h.logger.WarnContext(r.Context(), "mark read not confirmed by server",
			"notification_id", id,
			"error", err,
		)
		w.WriteHeader(http.StatusAccepted)
	}
}

// HandleUnread handles GET /unread.
func (h *RealtimeHandler) HandleUnread(w http.ResponseWriter, r *http.Request) {
	view := h.service.UnreadView()
	if view.Items == nil {
		view.Items = []domain.UnreadEntry{}
	}
	WriteJSON(w, http.StatusOK, view)
}

// HandleEntity handles GET /unread/{type}/{id}.
func (h *RealtimeHandler) HandleEntity(w http.ResponseWriter, r *http.Request) {
	entityType, id, ok := h.entityParams(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, EntityResponse{
		Type:        entityType,
		ID:          id,
		Unread:      h.service.IsUnread(entityType, id),
		Highlighted: h.service.IsHighlighted(entityType, id),
	})
}

// HandleEntityRead handles POST /unread/{type}/{id}/read.
func (h *RealtimeHandler) HandleEntityRead(w http.ResponseWriter, r *http.Request) {
	entityType, id, ok := h.entityParams(w, r)
	if !ok {
		return
	}
	if err := h.service.MarkEntityRead(entityType, id); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	WriteNoContent(w)
}

func (h *RealtimeHandler) entityParams(w http.ResponseWriter, r *http.Request) (domain.EntityType, string, bool) {
	entityType, err := domain.ParseEntityType(chi.URLParam(r, "type"))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return "", "", false
	}
	return entityType, chi.URLParam(r, "id"), true
}
