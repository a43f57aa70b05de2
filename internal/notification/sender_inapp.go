package notification

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/dom/nutrition-practice/internal/websocket"
	"github.com/google/uuid"
)

// UserPusher pushes messages to a user's live connections
type UserPusher interface {
	SendToUser(userID uuid.UUID, msg *websocket.Message) int
}

// InAppPayload is the websocket payload of an in-app notification
type InAppPayload struct {
	ID        uuid.UUID               `json:"id"`
	Type      domain.NotificationType `json:"type"`
	Title     string                  `json:"title"`
	Message   string                  `json:"message"`
	Data      json.RawMessage         `json:"data,omitempty"`
	Priority  domain.Priority         `json:"priority"`
	CreatedAt time.Time               `json:"createdAt"`
}

// InAppSender delivers to the user's inbox. The stored record is the inbox, so
// delivery succeeds whether or not the user is connected; live connections get
// a push.
type InAppSender struct {
	pusher UserPusher
	logger *slog.Logger
}

func NewInAppSender(pusher UserPusher, logger *slog.Logger) *InAppSender {
	return &InAppSender{pusher: pusher, logger: logger}
}

func (s *InAppSender) Send(ctx context.Context, n *domain.Notification) error {
	msg, err := websocket.NewMessage(websocket.MessageTypeNotification, InAppPayload{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Data:      json.RawMessage(n.Data),
		Priority:  n.Priority,
		CreatedAt: n.CreatedAt,
	})
	if err != nil {
		return err
	}

	delivered := s.pusher.SendToUser(n.UserID, msg)
	s.logger.DebugContext(ctx, "in-app notification pushed",
		slog.String("notification_id", n.ID.String()),
		slog.Int("connections", delivered),
	)
	return nil
}
