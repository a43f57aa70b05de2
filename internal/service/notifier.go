package service

import (
	"context"
	"log/slog"

	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/dom/nutrition-practice/internal/notification"
	"github.com/google/uuid"
)

// Notifier creates and cancels notifications
type Notifier interface {
	Create(ctx context.Context, req notification.CreateRequest) (*domain.Notification, error)
	Cancel(ctx context.Context, id uuid.UUID) error
}

// notify creates a side-effect notification. Failures are logged and never
// fail the request that triggered them.
func notify(ctx context.Context, notifier Notifier, logger *slog.Logger, req notification.CreateRequest) {
	if _, err := notifier.Create(ctx, req); err != nil {
		logger.ErrorContext(ctx, "failed to create notification",
			slog.String("type", string(req.Type)),
			slog.String("user_id", req.UserID.String()),
			slog.String("error", err.Error()),
		)
	}
}
