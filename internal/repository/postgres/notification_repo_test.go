package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/dom/nutrition-practice/internal/repository"
	"github.com/dom/nutrition-practice/internal/repository/postgres"
	"github.com/dom/nutrition-practice/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNotification(userID uuid.UUID, scheduledFor time.Time) *domain.Notification {
	return &domain.Notification{
		ID:           uuid.New(),
		UserID:       userID,
		Type:         domain.NotificationGeneric,
		Channel:      domain.ChannelEmail,
		Status:       domain.NotificationPending,
		Title:        "Hi",
		Message:      "Hello",
		ScheduledFor: scheduledFor,
		MaxRetries:   3,
		Priority:     domain.PriorityNormal,
		ExpiresAt:    scheduledFor.Add(domain.DefaultNotificationTTL),
	}
}

func TestNotificationRepository(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewNotificationRepository(testDB.DB)
	ctx := context.Background()
	lease := time.Minute

	setup := func(t *testing.T) (*domain.User, *domain.Notification) {
		testDB.Truncate(t)
		user, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
		n := newNotification(user.ID, time.Now())
		require.NoError(t, repo.Create(ctx, n))
		return user, n
	}

	t.Run("only one claim wins", func(t *testing.T) {
		_, n := setup(t)
		now := time.Now()

		var wg sync.WaitGroup
		var mu sync.Mutex
		winners := 0
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := repo.Claim(ctx, n.ID, uuid.New(), now, lease)
				assert.NoError(t, err)
				if ok {
					mu.Lock()
					winners++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, winners)
	})

	t.Run("expired claims can be taken over", func(t *testing.T) {
		_, n := setup(t)
		now := time.Now()

		ok, err := repo.Claim(ctx, n.ID, uuid.New(), now, lease)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = repo.Claim(ctx, n.ID, uuid.New(), now.Add(30*time.Second), lease)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = repo.Claim(ctx, n.ID, uuid.New(), now.Add(2*lease), lease)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("transitions require the claim", func(t *testing.T) {
		_, n := setup(t)
		token := uuid.New()

		ok, err := repo.MarkSent(ctx, n.ID, token, time.Now())
		require.NoError(t, err)
		assert.False(t, ok, "unclaimed notification")

		ok, err = repo.Claim(ctx, n.ID, token, time.Now(), lease)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = repo.MarkSent(ctx, n.ID, uuid.New(), time.Now())
		require.NoError(t, err)
		assert.False(t, ok, "foreign token")

		sentAt := time.Now().Truncate(time.Microsecond)
		ok, err = repo.MarkSent(ctx, n.ID, token, sentAt)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.MarkSent(ctx, n.ID, token, time.Now())
		require.NoError(t, err)
		assert.False(t, ok, "second terminal transition")

		stored, err := repo.GetByID(ctx, n.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.NotificationSent, stored.Status)
		require.NotNil(t, stored.SentAt)
		assert.True(t, stored.SentAt.Equal(sentAt))
		assert.Nil(t, stored.ClaimToken)
	})

	t.Run("retry keeps the notification pending", func(t *testing.T) {
		_, n := setup(t)
		token := uuid.New()

		ok, err := repo.Claim(ctx, n.ID, token, time.Now(), lease)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = repo.MarkRetry(ctx, n.ID, token, "smtp timeout")
		require.NoError(t, err)
		require.True(t, ok)

		stored, err := repo.GetByID(ctx, n.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.NotificationPending, stored.Status)
		assert.Equal(t, 1, stored.RetryCount)
		assert.Equal(t, "smtp timeout", stored.FailureReason)
		assert.Nil(t, stored.ClaimToken)

		ok, err = repo.Claim(ctx, n.ID, uuid.New(), time.Now(), lease)
		require.NoError(t, err)
		assert.True(t, ok, "released claim can be taken again")
	})

	t.Run("cancel skips claimed notifications", func(t *testing.T) {
		_, n := setup(t)

		ok, err := repo.Claim(ctx, n.ID, uuid.New(), time.Now(), lease)
		require.NoError(t, err)
		require.True(t, ok)

		cancelled, err := repo.Cancel(ctx, n.ID, "cancelled")
		require.NoError(t, err)
		assert.False(t, cancelled)
	})

	t.Run("cancel pending", func(t *testing.T) {
		_, n := setup(t)

		cancelled, err := repo.Cancel(ctx, n.ID, "cancelled")
		require.NoError(t, err)
		assert.True(t, cancelled)

		cancelled, err = repo.Cancel(ctx, n.ID, "cancelled")
		require.NoError(t, err)
		assert.False(t, cancelled)
	})

	t.Run("stale pending and expiry cleanup", func(t *testing.T) {
		user, fresh := setup(t)
		old := newNotification(user.ID, time.Now().Add(-time.Hour))
		old.ExpiresAt = time.Now().Add(-time.Minute)
		require.NoError(t, repo.Create(ctx, old))

		stale, err := repo.ListStalePending(ctx, time.Now().Add(-10*time.Minute), 10)
		require.NoError(t, err)
		require.Len(t, stale, 1)
		assert.Equal(t, old.ID, stale[0].ID)

		deleted, err := repo.DeleteExpired(ctx, time.Now())
		require.NoError(t, err)
		assert.EqualValues(t, 1, deleted)

		_, err = repo.GetByID(ctx, old.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = repo.GetByID(ctx, fresh.ID)
		assert.NoError(t, err)
	})

	t.Run("list and count by status", func(t *testing.T) {
		user, n := setup(t)
		other, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
		require.NoError(t, repo.Create(ctx, newNotification(other.ID, time.Now())))

		_, err := repo.Cancel(ctx, n.ID, "cancelled")
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, newNotification(user.ID, time.Now())))

		list, total, err := repo.ListByUser(ctx, user.ID, domain.NotificationPending, repository.Page{Page: 1, Limit: 10})
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		assert.Len(t, list, 1)

		counts, err := repo.CountByStatus(ctx, user.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, counts[domain.NotificationPending])
		assert.EqualValues(t, 1, counts[domain.NotificationCancelled])

		all, err := repo.CountByStatus(ctx, uuid.Nil)
		require.NoError(t, err)
		assert.EqualValues(t, 2, all[domain.NotificationPending])
	})
}
