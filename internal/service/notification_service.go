package service

import (
	"context"
	"errors"
	"time"

	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/dom/nutrition-practice/internal/notification"
	"github.com/dom/nutrition-practice/internal/repository"
	"github.com/google/uuid"
)

type NotificationService struct {
	notifications repository.NotificationRepository
	patients      repository.PatientRepository
	notifier      Notifier
}

func NewNotificationService(notifications repository.NotificationRepository, patients repository.PatientRepository, notifier Notifier) *NotificationService {
	return &NotificationService{notifications: notifications, patients: patients, notifier: notifier}
}

type NotificationInput struct {
	UserID       string                 `json:"userId"`
	Type         string                 `json:"type"`
	Title        string                 `json:"title" validate:"max=200"`
	Message      string                 `json:"message" validate:"max=5000"`
	Data         map[string]interface{} `json:"data"`
	Channel      string                 `json:"channel"`
	Priority     string                 `json:"priority"`
	ScheduledFor *time.Time             `json:"scheduledFor"`
	ExpiresAt    *time.Time             `json:"expiresAt"`
	MaxRetries   *int                   `json:"maxRetries" validate:"omitempty,gte=0,lte=10"`
}

// Create hands the notification to the dispatcher, which applies the
// defaults and validates the enums. Admins may address anyone; nutritionists
// only themselves and the accounts linked to their own patients.
func (s *NotificationService) Create(ctx context.Context, actor Actor, input NotificationInput) (*domain.Notification, error) {
	verr := validateStruct(input)
	var userID uuid.UUID
	if input.UserID != "" {
		id, err := uuid.Parse(input.UserID)
		if err != nil {
			verr.Add("userId", "must be a valid UUID")
		}
		userID = id
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}
	if userID != uuid.Nil {
		if err := s.authorizeRecipient(ctx, actor, userID); err != nil {
			return nil, err
		}
	}

	n, err := s.notifier.Create(ctx, notification.CreateRequest{
		UserID:       userID,
		Type:         domain.NotificationType(input.Type),
		Title:        input.Title,
		Message:      input.Message,
		Data:         input.Data,
		Channel:      domain.Channel(input.Channel),
		Priority:     domain.Priority(input.Priority),
		ScheduledFor: input.ScheduledFor,
		ExpiresAt:    input.ExpiresAt,
		MaxRetries:   input.MaxRetries,
	})
	if err != nil {
		return nil, err
	}
	notification.RedactSecret(n)
	return n, nil
}

func (s *NotificationService) authorizeRecipient(ctx context.Context, actor Actor, userID uuid.UUID) error {
	if actor.IsAdmin() || userID == actor.UserID {
		return nil
	}
	scope, err := actor.writeScope()
	if err != nil {
		return err
	}
	scope.PatientUserID = userID
	linked, err := s.patients.Count(ctx, scope, repository.RecordFilter{})
	if err != nil {
		return err
	}
	if linked == 0 {
		return ErrForbidden
	}
	return nil
}

// List returns the acting user's own notifications
func (s *NotificationService) List(ctx context.Context, actor Actor, status domain.NotificationStatus, page repository.Page) ([]*domain.Notification, int64, error) {
	if status != "" && !status.IsValid() {
		return nil, 0, domain.NewValidationError("status", "must be one of: pending, sent, failed, cancelled")
	}
	items, total, err := s.notifications.ListByUser(ctx, actor.UserID, status, page)
	if err != nil {
		return nil, 0, err
	}
	for _, n := range items {
		notification.RedactSecret(n)
	}
	return items, total, nil
}

// Get returns a notification addressed to the actor. Admins may read any.
func (s *NotificationService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*domain.Notification, error) {
	n, err := s.notifications.GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNotificationNotFound
	}
	if err != nil {
		return nil, err
	}
	if n.UserID != actor.UserID && !actor.IsAdmin() {
		return nil, domain.ErrNotificationNotFound
	}
	notification.RedactSecret(n)
	return n, nil
}

// Cancel stops a pending notification before it is delivered
func (s *NotificationService) Cancel(ctx context.Context, actor Actor, id uuid.UUID) (*domain.Notification, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	if err := s.notifier.Cancel(ctx, id); err != nil {
		return nil, err
	}
	n, err := s.notifications.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	notification.RedactSecret(n)
	return n, nil
}
