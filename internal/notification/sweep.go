package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/dom/nutrition-practice/internal/repository"
)

const sweepBatchSize = 500

// Sweeper re-enqueues pending notifications that should have run long ago,
// such as records whose enqueue failed after they were stored. Enqueue is
// idempotent, so jobs that are still queued are left alone.
type Sweeper struct {
	repo       repository.NotificationRepository
	queue      Queue
	staleAfter time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

func NewSweeper(repo repository.NotificationRepository, queue Queue, staleAfter time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		repo:       repo,
		queue:      queue,
		staleAfter: staleAfter,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock replaces the sweeper clock
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// RunOnce performs one sweep and returns how many jobs it re-enqueued
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()

	stale, err := s.repo.ListStalePending(ctx, s.now().Add(-s.staleAfter), sweepBatchSize)
	if err != nil {
		return 0, err
	}

	requeued := 0
	for _, n := range stale {
		added, err := s.queue.Enqueue(ctx, n.ID, 0, n.Priority.QueuePriority())
		if err != nil {
			s.logger.Error("failed to re-enqueue notification",
				slog.String("notification_id", n.ID.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		if added {
			requeued++
		}
	}

	s.logger.Info("notification sweep completed",
		slog.Int("stale_count", len(stale)),
		slog.Int("requeued_count", requeued),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return requeued, nil
}

func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	runEvery(ctx, interval, s.logger, "notification sweep", func(ctx context.Context) error {
		_, err := s.RunOnce(ctx)
		return err
	})
}

// Cleanup deletes notifications past their time-to-live
type Cleanup struct {
	repo   repository.NotificationRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewCleanup(repo repository.NotificationRepository, logger *slog.Logger) *Cleanup {
	return &Cleanup{repo: repo, logger: logger, now: time.Now}
}

func (c *Cleanup) WithClock(now func() time.Time) *Cleanup {
	c.now = now
	return c
}

func (c *Cleanup) RunOnce(ctx context.Context) (int64, error) {
	start := time.Now()

	deleted, err := c.repo.DeleteExpired(ctx, c.now())
	if err != nil {
		return 0, err
	}

	c.logger.Info("notification cleanup completed",
		slog.Int64("deleted_count", deleted),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return deleted, nil
}

func (c *Cleanup) Run(ctx context.Context, interval time.Duration) {
	runEvery(ctx, interval, c.logger, "notification cleanup", func(ctx context.Context) error {
		_, err := c.RunOnce(ctx)
		return err
	})
}

// runEvery runs fn immediately and then on every tick until ctx is cancelled
func runEvery(ctx context.Context, interval time.Duration, logger *slog.Logger, name string, fn func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			logger.Error(name+" failed", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
