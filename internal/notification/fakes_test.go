package notification_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/dom/nutrition-practice/internal/repository"
	"github.com/google/uuid"
)

// memoryRepo mirrors the conditional updates of the postgres repository
type memoryRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*domain.Notification
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: make(map[uuid.UUID]*domain.Notification)}
}

func (r *memoryRepo) snapshot(id uuid.UUID) domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.items[id]
}

func (r *memoryRepo) Create(_ context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	stored := *n
	r.items[n.ID] = &stored
	return nil
}

func (r *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *n
	return &out, nil
}

func (r *memoryRepo) ListByUser(_ context.Context, userID uuid.UUID, status domain.NotificationStatus, _ repository.Page) ([]*domain.Notification, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Notification
	for _, n := range r.items {
		if n.UserID == userID && (status == "" || n.Status == status) {
			copied := *n
			out = append(out, &copied)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memoryRepo) Claim(_ context.Context, id, token uuid.UUID, now time.Time, lease time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.items[id]
	if !ok || n.Status != domain.NotificationPending {
		return false, nil
	}
	if n.ClaimToken != nil && !n.ClaimedAt.Before(now.Add(-lease)) {
		return false, nil
	}
	n.ClaimToken = &token
	n.ClaimedAt = &now
	return true, nil
}

func (r *memoryRepo) transition(id, token uuid.UUID, apply func(n *domain.Notification)) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.items[id]
	if !ok || n.Status != domain.NotificationPending || n.ClaimToken == nil || *n.ClaimToken != token {
		return false, nil
	}
	apply(n)
	n.ClaimToken = nil
	n.ClaimedAt = nil
	return true, nil
}

func (r *memoryRepo) MarkSent(_ context.Context, id, token uuid.UUID, sentAt time.Time) (bool, error) {
	return r.transition(id, token, func(n *domain.Notification) {
		n.Status = domain.NotificationSent
		n.SentAt = &sentAt
		n.FailureReason = ""
	})
}

func (r *memoryRepo) MarkRetry(_ context.Context, id, token uuid.UUID, reason string) (bool, error) {
	return r.transition(id, token, func(n *domain.Notification) {
		n.RetryCount++
		n.FailureReason = reason
	})
}

func (r *memoryRepo) MarkFailed(_ context.Context, id, token uuid.UUID, reason string) (bool, error) {
	return r.transition(id, token, func(n *domain.Notification) {
		n.Status = domain.NotificationFailed
		n.FailureReason = reason
	})
}

func (r *memoryRepo) MarkCancelled(_ context.Context, id, token uuid.UUID, reason string) (bool, error) {
	return r.transition(id, token, func(n *domain.Notification) {
		n.Status = domain.NotificationCancelled
		n.FailureReason = reason
	})
}

func (r *memoryRepo) Cancel(_ context.Context, id uuid.UUID, reason string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.items[id]
	if !ok || n.Status != domain.NotificationPending || n.ClaimToken != nil {
		return false, nil
	}
	n.Status = domain.NotificationCancelled
	n.FailureReason = reason
	return true, nil
}

func (r *memoryRepo) ListStalePending(_ context.Context, before time.Time, limit int) ([]*domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Notification
	for _, n := range r.items {
		if n.Status == domain.NotificationPending && n.ScheduledFor.Before(before) && len(out) < limit {
			copied := *n
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memoryRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for id, n := range r.items {
		if n.ExpiresAt.Before(now) {
			delete(r.items, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *memoryRepo) CountByStatus(_ context.Context, userID uuid.UUID) (map[domain.NotificationStatus]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[domain.NotificationStatus]int64{}
	for _, n := range r.items {
		if userID == uuid.Nil || n.UserID == userID {
			counts[n.Status]++
		}
	}
	return counts, nil
}

type queuedJob struct {
	ID       uuid.UUID
	Delay    time.Duration
	Priority int
}

// recordingQueue remembers every call made to it
type recordingQueue struct {
	mu         sync.Mutex
	enqueued   []queuedJob
	retried    []queuedJob
	acked      []uuid.UUID
	enqueueErr error
}

func (q *recordingQueue) Enqueue(_ context.Context, id uuid.UUID, delay time.Duration, priority int) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.enqueueErr != nil {
		return false, q.enqueueErr
	}
	q.enqueued = append(q.enqueued, queuedJob{ID: id, Delay: delay, Priority: priority})
	return true, nil
}

func (q *recordingQueue) Dequeue(context.Context) (uuid.UUID, bool, error) {
	return uuid.Nil, false, nil
}

func (q *recordingQueue) Ack(_ context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.acked = append(q.acked, id)
	return nil
}

func (q *recordingQueue) Retry(_ context.Context, id uuid.UUID, delay time.Duration, priority int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.retried = append(q.retried, queuedJob{ID: id, Delay: delay, Priority: priority})
	return nil
}

// stubSender returns err on every call and counts calls
type stubSender struct {
	mu    sync.Mutex
	calls int
	err   error
	delay time.Duration
}

func (s *stubSender) Send(context.Context, *domain.Notification) error {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.err
}

func (s *stubSender) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var errTransport = errors.New("connection refused")

// fakeUsers serves recipients for the email sender
type fakeUsers struct {
	users map[uuid.UUID]*domain.User
	err   error
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u, nil
}
