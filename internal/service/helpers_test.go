package service_test

import (
	"context"
	"sync"
	"time"

	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/dom/nutrition-practice/internal/notification"
	"github.com/google/uuid"
)

// recordingNotifier keeps every request instead of dispatching it
type recordingNotifier struct {
	mu        sync.Mutex
	requests  []notification.CreateRequest
	cancelled []uuid.UUID
	err       error
}

func (n *recordingNotifier) Create(_ context.Context, req notification.CreateRequest) (*domain.Notification, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return nil, n.err
	}
	n.requests = append(n.requests, req)
	return &domain.Notification{
		ID:       uuid.New(),
		UserID:   req.UserID,
		Type:     req.Type,
		Channel:  req.Channel,
		Status:   domain.NotificationPending,
		Title:    req.Title,
		Message:  req.Message,
		Priority: req.Priority,
	}, nil
}

func (n *recordingNotifier) Cancel(_ context.Context, id uuid.UUID) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelled = append(n.cancelled, id)
	return nil
}

func (n *recordingNotifier) Requests() []notification.CreateRequest {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification.CreateRequest(nil), n.requests...)
}

func (n *recordingNotifier) OfType(t domain.NotificationType) []notification.CreateRequest {
	var out []notification.CreateRequest
	for _, req := range n.Requests() {
		if req.Type == t {
			out = append(out, req)
		}
	}
	return out
}

func (n *recordingNotifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.requests = nil
	n.cancelled = nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
