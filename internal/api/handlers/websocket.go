package handlers

import (
	"log/slog"
	"net/http"

	"github.com/dom/nutrition-practice/internal/auth"
	"github.com/dom/nutrition-practice/internal/websocket"
	ws "github.com/gorilla/websocket"
)

var upgrader = ws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler opens the live in-app notification stream. Browsers cannot
// set headers on the upgrade request, so the token travels in the query.
type WebSocketHandler struct {
	hub      *websocket.Hub
	resolver *auth.Resolver
	users    auth.UserLookup
	rs       *Responder
	logger   *slog.Logger
}

func NewWebSocketHandler(hub *websocket.Hub, resolver *auth.Resolver, users auth.UserLookup, rs *Responder, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:      hub,
		resolver: resolver,
		users:    users,
		rs:       rs,
		logger:   logger,
	}
}

func (h *WebSocketHandler) Handle(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		h.rs.Error(w, r, auth.ErrMissingCredential)
		return
	}

	p, err := h.resolver.ResolveToken(r.Context(), token)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	userID := p.UserID
	if !p.HasLocalUser() {
		user, err := h.users.GetByExternalSubjectID(r.Context(), p.SubjectID)
		if err != nil {
			h.rs.Error(w, r, auth.ErrInvalidCredential)
			return
		}
		userID = user.ID
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	client := websocket.NewClient(h.hub, conn, userID)
	if msg, err := websocket.NewMessage(websocket.MessageTypeConnected, websocket.ConnectedPayload{UserID: userID.String()}); err == nil {
		client.Send(msg)
	}
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
