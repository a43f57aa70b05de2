package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/dom/nutrition-practice/internal/metrics"
	"github.com/dom/nutrition-practice/internal/repository"
	"github.com/google/uuid"
)

// Sender delivers a notification over one channel
type Sender interface {
	Send(ctx context.Context, n *domain.Notification) error
}

type ProcessorConfig struct {
	BaseRetryDelay time.Duration
	// ClaimLease bounds how long a crashed worker can hold a notification
	ClaimLease time.Duration
}

// Processor executes one delivery job
type Processor struct {
	repo    repository.NotificationRepository
	queue   Queue
	senders map[domain.Channel]Sender
	metrics metrics.Recorder
	cfg     ProcessorConfig
	logger  *slog.Logger
	now     func() time.Time
}

func NewProcessor(repo repository.NotificationRepository, queue Queue, senders map[domain.Channel]Sender, recorder metrics.Recorder, cfg ProcessorConfig, logger *slog.Logger) *Processor {
	if cfg.BaseRetryDelay <= 0 {
		cfg.BaseRetryDelay = time.Minute
	}
	if cfg.ClaimLease <= 0 {
		cfg.ClaimLease = defaultLease
	}
	return &Processor{
		repo:    repo,
		queue:   queue,
		senders: senders,
		metrics: recorder,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock replaces the processor clock
func (p *Processor) WithClock(now func() time.Time) *Processor {
	p.now = now
	return p
}

// Process delivers the notification with the given id. Only the worker holding
// the storage claim may move it out of pending, so concurrent runs of the same
// job record at most one terminal transition.
func (p *Processor) Process(ctx context.Context, id uuid.UUID) error {
	log := p.logger.With(slog.String("notification_id", id.String()))

	n, err := p.repo.GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		log.WarnContext(ctx, "notification no longer exists, dropping job")
		return p.queue.Ack(ctx, id)
	}
	if err != nil {
		return fmt.Errorf("load notification: %w", err)
	}

	if n.Status != domain.NotificationPending {
		log.DebugContext(ctx, "notification already handled", slog.String("status", string(n.Status)))
		return p.queue.Ack(ctx, id)
	}

	token := uuid.New()
	now := p.now()
	claimed, err := p.repo.Claim(ctx, id, token, now, p.cfg.ClaimLease)
	if err != nil {
		return fmt.Errorf("claim notification: %w", err)
	}
	if !claimed {
		log.DebugContext(ctx, "notification claimed elsewhere")
		return p.queue.Ack(ctx, id)
	}

	if n.IsExpired(now) {
		ok, err := p.repo.MarkCancelled(ctx, id, token, "expired")
		if err != nil {
			return fmt.Errorf("cancel expired notification: %w", err)
		}
		if ok {
			p.metrics.RecordNotificationCancelled(string(n.Channel))
			log.InfoContext(ctx, "notification expired before delivery")
		}
		return p.queue.Ack(ctx, id)
	}

	sendErr := p.send(ctx, n)
	if sendErr == nil {
		sentAt := p.now()
		ok, err := p.repo.MarkSent(ctx, id, token, sentAt)
		if err != nil {
			return fmt.Errorf("mark notification sent: %w", err)
		}
		if ok {
			p.metrics.RecordNotificationSent(string(n.Channel), sentAt.Sub(n.ScheduledFor))
			log.InfoContext(ctx, "notification sent", slog.String("channel", string(n.Channel)))
		} else {
			log.WarnContext(ctx, "delivery claim lost before recording success")
		}
		return p.queue.Ack(ctx, id)
	}

	return p.fail(ctx, log, n, token, sendErr)
}

func (p *Processor) send(ctx context.Context, n *domain.Notification) error {
	sender, ok := p.senders[n.Channel]
	if !ok {
		return ErrChannelNotImplemented
	}
	return sender.Send(ctx, n)
}

func (p *Processor) fail(ctx context.Context, log *slog.Logger, n *domain.Notification, token uuid.UUID, sendErr error) error {
	reason := sendErr.Error()

	if !isPermanent(sendErr) && n.CanRetry() {
		ok, err := p.repo.MarkRetry(ctx, n.ID, token, reason)
		if err != nil {
			return fmt.Errorf("record retry: %w", err)
		}
		if !ok {
			log.WarnContext(ctx, "delivery claim lost before scheduling retry")
			return p.queue.Ack(ctx, n.ID)
		}

		attempt := n.RetryCount + 1
		delay := RetryDelay(attempt, p.cfg.BaseRetryDelay)
		priority := ElevatePriority(n.Priority.QueuePriority())
		p.metrics.RecordNotificationRetried(string(n.Channel))
		log.WarnContext(ctx, "notification delivery failed, retrying",
			slog.Int("retry_count", attempt),
			slog.Duration("delay", delay),
			slog.String("error", reason),
		)
		return p.queue.Retry(ctx, n.ID, delay, priority)
	}

	ok, err := p.repo.MarkFailed(ctx, n.ID, token, reason)
	if err != nil {
		return fmt.Errorf("mark notification failed: %w", err)
	}
	if ok {
		p.metrics.RecordNotificationFailed(string(n.Channel))
		log.ErrorContext(ctx, "notification delivery failed",
			slog.Int("retry_count", n.RetryCount),
			slog.String("error", reason),
		)
	}
	return p.queue.Ack(ctx, n.ID)
}
