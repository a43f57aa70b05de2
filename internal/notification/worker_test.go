package notification_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dom/nutrition-practice/internal/notification"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ackingProcessor records processed ids and acks them
type ackingProcessor struct {
	queue notification.Queue
	mu    sync.Mutex
	seen  []uuid.UUID
}

func (p *ackingProcessor) Process(ctx context.Context, id uuid.UUID) error {
	p.mu.Lock()
	p.seen = append(p.seen, id)
	p.mu.Unlock()
	return p.queue.Ack(ctx, id)
}

func (p *ackingProcessor) Seen() []uuid.UUID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]uuid.UUID(nil), p.seen...)
}

func TestWorker_ProcessesQueuedJobs(t *testing.T) {
	queue := notification.NewRedisQueue(newRedisClient(t))
	processor := &ackingProcessor{queue: queue}

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New()}
	for i, id := range ids {
		_, err := queue.Enqueue(context.Background(), id, 0, i%4+1)
		require.NoError(t, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker := notification.NewWorker(queue, processor, 2, 10*time.Millisecond, discardLogger())
	errCh := make(chan error, 1)
	go func() { errCh <- worker.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(processor.Seen()) == len(ids)
	}, 2*time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, ids, processor.Seen())

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}

	stats, err := queue.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, notification.QueueStats{}, stats)
}

func TestWorker_PicksUpDelayedJob(t *testing.T) {
	queue := notification.NewRedisQueue(newRedisClient(t))
	processor := &ackingProcessor{queue: queue}

	id := uuid.New()
	_, err := queue.Enqueue(context.Background(), id, 50*time.Millisecond, 3)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker := notification.NewWorker(queue, processor, 1, 10*time.Millisecond, discardLogger())
	go worker.Run(ctx)

	require.Eventually(t, func() bool {
		return len(processor.Seen()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, id, processor.Seen()[0])
}
