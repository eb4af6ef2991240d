package handler

import (
	"log/slog"
	"net/http"

	"go-authorisation-service/internal/auth"
	"go-authorisation-service/internal/middleware"
	"go-authorisation-service/internal/model"
	"go-authorisation-service/internal/websocket"
	"go-authorisation-service/pkg/apierror"
)

type EventsHandler struct {
	registry *websocket.Registry
}

func NewEventsHandler(registry *websocket.Registry) *EventsHandler {
	return &EventsHandler{registry: registry}
}

// Stream upgrades to a websocket that receives the events whose type starts
// with the requested scope (?scope=users). The caller must hold a scope that
// grants the requested one.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	creds, ok := middleware.PermissionCredentialsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	scope := r.URL.Query().Get("scope")
	if _, granted := auth.MatchScope(creds.User.Scopes, scope); !granted {
		writeError(w, apierror.Forbidden(auth.MessageNoAccess).WithRequest(r))
		return
	}

	conn, err := h.registry.Upgrade(w, r, scope, creds.Session)
	if err != nil {
		slog.Warn("websocket upgrade failed", "user_id", creds.User.ID, "error", err)
		return
	}

	conn.Listen(nil)
	h.registry.Remove(conn.ID, conn.CloseReason())
}
