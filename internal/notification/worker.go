package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// JobProcessor runs one dequeued job
type JobProcessor interface {
	Process(ctx context.Context, id uuid.UUID) error
}

// Worker polls the queue with a fixed number of goroutines. Each goroutine
// processes one job at a time, so concurrency bounds the jobs in flight.
type Worker struct {
	queue        Queue
	processor    JobProcessor
	concurrency  int
	pollInterval time.Duration
	logger       *slog.Logger
}

// NewWorker creates a Worker. A concurrency of 0 or less uses 5.
func NewWorker(queue Queue, processor JobProcessor, concurrency int, pollInterval time.Duration, logger *slog.Logger) *Worker {
	if concurrency <= 0 {
		concurrency = 5
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Worker{
		queue:        queue,
		processor:    processor,
		concurrency:  concurrency,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// Run blocks until ctx is cancelled. Jobs already started finish first.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("delivery worker started",
		slog.Int("concurrency", w.concurrency),
		slog.Duration("poll_interval", w.pollInterval),
	)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		i := i
		g.Go(func() error {
			w.poll(ctx, i)
			return nil
		})
	}
	err := g.Wait()

	w.logger.Info("delivery worker stopped")
	return err
}

func (w *Worker) poll(ctx context.Context, slot int) {
	log := w.logger.With(slog.Int("slot", slot))

	for ctx.Err() == nil {
		id, ok, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Error("failed to dequeue job", slog.String("error", err.Error()))
			}
			w.wait(ctx)
			continue
		}
		if !ok {
			w.wait(ctx)
			continue
		}

		// a job that started runs to completion even during shutdown
		if err := w.processor.Process(context.WithoutCancel(ctx), id); err != nil {
			log.Error("job failed",
				slog.String("notification_id", id.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (w *Worker) wait(ctx context.Context) {
	timer := time.NewTimer(w.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
