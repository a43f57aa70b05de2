package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/dom/nutrition-practice/internal/metrics"
	"github.com/dom/nutrition-practice/internal/repository"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/datatypes"
)

// CreateRequest describes a notification to deliver. Zero values select the
// defaults: email channel, normal priority, immediate delivery and the
// configured retry budget. The default time-to-live counts from the scheduled
// time.
type CreateRequest struct {
	UserID       uuid.UUID
	Type         domain.NotificationType
	Title        string
	Message      string
	Data         map[string]interface{}
	Channel      domain.Channel
	Priority     domain.Priority
	ScheduledFor *time.Time
	ExpiresAt    *time.Time
	MaxRetries   *int
	// Secret is a one-time token for the email body. It is stored sealed and
	// never appears in Data.
	Secret string
}

type DispatcherConfig struct {
	MaxRetries int
	TTL        time.Duration
	Secrets    *SecretBox
}

// Dispatcher persists notifications and hands them to the delivery queue
type Dispatcher struct {
	repo    repository.NotificationRepository
	queue   Queue
	metrics metrics.Recorder
	cfg     DispatcherConfig
	logger  *slog.Logger
	now     func() time.Time
}

func NewDispatcher(repo repository.NotificationRepository, queue Queue, recorder metrics.Recorder, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if cfg.TTL <= 0 {
		cfg.TTL = domain.DefaultNotificationTTL
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Dispatcher{
		repo:    repo,
		queue:   queue,
		metrics: recorder,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock replaces the dispatcher clock
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// Create stores the notification as pending and enqueues it. A failed enqueue
// is logged and counted but not returned: the record stays pending and the
// reconciliation sweep picks it up.
func (d *Dispatcher) Create(ctx context.Context, req CreateRequest) (*domain.Notification, error) {
	now := d.now()

	if req.Channel == "" {
		req.Channel = domain.ChannelEmail
	}
	if req.Priority == "" {
		req.Priority = domain.PriorityNormal
	}
	scheduledFor := now
	if req.ScheduledFor != nil {
		scheduledFor = *req.ScheduledFor
	}
	expiresAt := scheduledFor.Add(d.cfg.TTL)
	if req.ExpiresAt != nil {
		expiresAt = *req.ExpiresAt
	}
	maxRetries := d.cfg.MaxRetries
	if req.MaxRetries != nil {
		maxRetries = *req.MaxRetries
	}

	if err := validateCreate(req, scheduledFor, expiresAt, maxRetries); err != nil {
		return nil, err
	}

	id := uuid.New()
	data, err := d.encodeData(id, req)
	if err != nil {
		return nil, err
	}

	n := &domain.Notification{
		ID:           id,
		UserID:       req.UserID,
		Type:         req.Type,
		Channel:      req.Channel,
		Status:       domain.NotificationPending,
		Title:        strings.TrimSpace(req.Title),
		Message:      strings.TrimSpace(req.Message),
		Data:         data,
		ScheduledFor: scheduledFor,
		MaxRetries:   maxRetries,
		Priority:     req.Priority,
		ExpiresAt:    expiresAt,
	}

	if err := d.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("store notification: %w", err)
	}
	d.metrics.RecordNotificationCreated(string(n.Channel))

	delay := scheduledFor.Sub(now)
	if delay < 0 {
		delay = 0
	}
	if _, err := d.queue.Enqueue(ctx, n.ID, delay, n.Priority.QueuePriority()); err != nil {
		d.metrics.RecordEnqueueFailure()
		d.logger.ErrorContext(ctx, "failed to enqueue notification, leaving it for the sweep",
			slog.String("notification_id", n.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	return n, nil
}

// encodeData stores the caller's data and, when present, the sealed secret.
// A caller cannot supply its own sealed field.
func (d *Dispatcher) encodeData(id uuid.UUID, req CreateRequest) (datatypes.JSON, error) {
	fields := lo.OmitByKeys(req.Data, []string{SecretDataKey})
	if req.Secret != "" {
		if d.cfg.Secrets == nil {
			return nil, errors.New("notification secrets are not configured")
		}
		sealed, err := d.cfg.Secrets.Seal(id, req.Secret)
		if err != nil {
			return nil, fmt.Errorf("seal notification secret: %w", err)
		}
		fields[SecretDataKey] = sealed
	}
	if len(fields) == 0 {
		return nil, nil
	}

	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, domain.NewValidationError("data", "must be a JSON object")
	}
	return datatypes.JSON(raw), nil
}

func validateCreate(req CreateRequest, scheduledFor, expiresAt time.Time, maxRetries int) error {
	verr := &domain.ValidationError{}
	if req.UserID == uuid.Nil {
		verr.Add("userId", "is required")
	}
	if req.Type == "" {
		verr.Add("type", "is required")
	} else if !req.Type.IsValid() {
		verr.Add("type", domain.ErrInvalidType.Error())
	}
	if strings.TrimSpace(req.Title) == "" {
		verr.Add("title", "is required")
	}
	if strings.TrimSpace(req.Message) == "" {
		verr.Add("message", "is required")
	}
	if !req.Channel.IsValid() {
		verr.Add("channel", domain.ErrInvalidChannel.Error())
	}
	if !req.Priority.IsValid() {
		verr.Add("priority", domain.ErrInvalidPriority.Error())
	}
	if !expiresAt.After(scheduledFor) {
		verr.Add("expiresAt", "must be after scheduledFor")
	}
	if maxRetries < 0 {
		verr.Add("maxRetries", "must not be negative")
	}
	return verr.Err()
}

// Cancel moves a pending notification that no worker is delivering to
// cancelled
func (d *Dispatcher) Cancel(ctx context.Context, id uuid.UUID) error {
	cancelled, err := d.repo.Cancel(ctx, id, "cancelled")
	if err != nil {
		return fmt.Errorf("cancel notification: %w", err)
	}
	if cancelled {
		n, err := d.repo.GetByID(ctx, id)
		if err == nil {
			d.metrics.RecordNotificationCancelled(string(n.Channel))
		}
		return nil
	}

	if _, err := d.repo.GetByID(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotificationNotFound
		}
		return err
	}
	return domain.ErrNotificationNotPending
}
