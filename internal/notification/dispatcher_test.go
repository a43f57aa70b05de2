package notification_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/dom/nutrition-practice/internal/metrics"
	"github.com/dom/nutrition-practice/internal/notification"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(repo *memoryRepo, queue *recordingQueue, clock *testClock) *notification.Dispatcher {
	return notification.NewDispatcher(repo, queue, metrics.Nop{},
		notification.DispatcherConfig{MaxRetries: 3, TTL: 30 * 24 * time.Hour},
		discardLogger(),
	).WithClock(clock.Now)
}

func TestDispatcher_CreateAppliesDefaults(t *testing.T) {
	repo := newMemoryRepo()
	queue := &recordingQueue{}
	clock := newTestClock()
	d := newTestDispatcher(repo, queue, clock)
	userID := uuid.New()

	n, err := d.Create(context.Background(), notification.CreateRequest{
		UserID:   userID,
		Type:     domain.NotificationWelcome,
		Title:    "Hi",
		Message:  "Welcome",
		Priority: domain.PriorityHigh,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.ChannelEmail, n.Channel)
	assert.Equal(t, domain.NotificationPending, n.Status)
	assert.Equal(t, domain.PriorityHigh, n.Priority)
	assert.Equal(t, clock.Now(), n.ScheduledFor)
	assert.Equal(t, clock.Now().Add(30*24*time.Hour), n.ExpiresAt)
	assert.Equal(t, 3, n.MaxRetries)
	assert.Zero(t, n.RetryCount)

	stored := repo.snapshot(n.ID)
	assert.Equal(t, domain.NotificationPending, stored.Status)

	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, queuedJob{ID: n.ID, Delay: 0, Priority: 2}, queue.enqueued[0])
}

func TestDispatcher_CreateScheduledInFuture(t *testing.T) {
	repo := newMemoryRepo()
	queue := &recordingQueue{}
	clock := newTestClock()
	d := newTestDispatcher(repo, queue, clock)

	at := clock.Now().Add(2 * time.Hour)
	n, err := d.Create(context.Background(), notification.CreateRequest{
		UserID:       uuid.New(),
		Type:         domain.NotificationConsultationReminder,
		Title:        "Reminder",
		Message:      "See you tomorrow",
		Channel:      domain.ChannelInApp,
		Priority:     domain.PriorityLow,
		ScheduledFor: &at,
		Data:         map[string]interface{}{"consultationId": "c1"},
	})
	require.NoError(t, err)

	assert.JSONEq(t, `{"consultationId":"c1"}`, string(n.Data))
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, 2*time.Hour, queue.enqueued[0].Delay)
	assert.Equal(t, 4, queue.enqueued[0].Priority)
}

func TestDispatcher_CreatePastScheduleHasNoDelay(t *testing.T) {
	repo := newMemoryRepo()
	queue := &recordingQueue{}
	clock := newTestClock()
	d := newTestDispatcher(repo, queue, clock)

	at := clock.Now().Add(-time.Hour)
	_, err := d.Create(context.Background(), notification.CreateRequest{
		UserID:       uuid.New(),
		Type:         domain.NotificationGeneric,
		Title:        "Late",
		Message:      "Late",
		ScheduledFor: &at,
	})
	require.NoError(t, err)

	require.Len(t, queue.enqueued, 1)
	assert.Zero(t, queue.enqueued[0].Delay)
}

func TestDispatcher_CreateValidation(t *testing.T) {
	clock := newTestClock()
	past := clock.Now().Add(-time.Minute)

	tests := []struct {
		name       string
		req        notification.CreateRequest
		wantFields []string
	}{
		{
			name:       "empty request",
			req:        notification.CreateRequest{},
			wantFields: []string{"userId", "type", "title", "message"},
		},
		{
			name: "unknown enums",
			req: notification.CreateRequest{
				UserID:   uuid.New(),
				Type:     "birthday",
				Title:    "t",
				Message:  "m",
				Channel:  "fax",
				Priority: "critical",
			},
			wantFields: []string{"type", "channel", "priority"},
		},
		{
			name: "expiry before schedule",
			req: notification.CreateRequest{
				UserID:    uuid.New(),
				Type:      domain.NotificationGeneric,
				Title:     "t",
				Message:   "m",
				ExpiresAt: &past,
			},
			wantFields: []string{"expiresAt"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemoryRepo()
			queue := &recordingQueue{}
			d := newTestDispatcher(repo, queue, clock)

			_, err := d.Create(context.Background(), tt.req)

			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			var fields []string
			for _, f := range verr.Fields {
				fields = append(fields, f.Field)
			}
			assert.ElementsMatch(t, tt.wantFields, fields)
			assert.Empty(t, repo.items)
			assert.Empty(t, queue.enqueued)
		})
	}
}

func TestDispatcher_EnqueueFailureKeepsRecord(t *testing.T) {
	repo := newMemoryRepo()
	queue := &recordingQueue{enqueueErr: errors.New("redis down")}
	d := newTestDispatcher(repo, queue, newTestClock())

	n, err := d.Create(context.Background(), notification.CreateRequest{
		UserID:  uuid.New(),
		Type:    domain.NotificationGeneric,
		Title:   "t",
		Message: "m",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.NotificationPending, repo.snapshot(n.ID).Status)
}

func TestDispatcher_Cancel(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	clock := newTestClock()
	d := newTestDispatcher(repo, &recordingQueue{}, clock)

	n, err := d.Create(ctx, notification.CreateRequest{
		UserID:  uuid.New(),
		Type:    domain.NotificationGeneric,
		Title:   "t",
		Message: "m",
	})
	require.NoError(t, err)

	require.NoError(t, d.Cancel(ctx, n.ID))
	assert.Equal(t, domain.NotificationCancelled, repo.snapshot(n.ID).Status)

	assert.ErrorIs(t, d.Cancel(ctx, n.ID), domain.ErrNotificationNotPending)
	assert.ErrorIs(t, d.Cancel(ctx, uuid.New()), domain.ErrNotificationNotFound)
}

func TestDispatcher_CancelClaimedNotification(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	clock := newTestClock()
	d := newTestDispatcher(repo, &recordingQueue{}, clock)

	n, err := d.Create(ctx, notification.CreateRequest{
		UserID:  uuid.New(),
		Type:    domain.NotificationGeneric,
		Title:   "t",
		Message: "m",
	})
	require.NoError(t, err)

	_, err = repo.Claim(ctx, n.ID, uuid.New(), clock.Now(), time.Minute)
	require.NoError(t, err)

	assert.ErrorIs(t, d.Cancel(ctx, n.ID), domain.ErrNotificationNotPending)
	assert.Equal(t, domain.NotificationPending, repo.snapshot(n.ID).Status)
}

func TestDispatcher_DefaultExpiryFollowsSchedule(t *testing.T) {
	repo := newMemoryRepo()
	queue := &recordingQueue{}
	clock := newTestClock()
	d := newTestDispatcher(repo, queue, clock)

	at := clock.Now().Add(45 * 24 * time.Hour)
	n, err := d.Create(context.Background(), notification.CreateRequest{
		UserID:       uuid.New(),
		Type:         domain.NotificationGeneric,
		Title:        "Follow-up",
		Message:      "Time for a check-in",
		ScheduledFor: &at,
	})
	require.NoError(t, err)

	assert.Equal(t, at.Add(30*24*time.Hour), n.ExpiresAt)
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, 45*24*time.Hour, queue.enqueued[0].Delay)
}

func TestDispatcher_SealsSecret(t *testing.T) {
	box := newSecretBox(t)
	clock := newTestClock()

	newDispatcher := func(repo *memoryRepo, box *notification.SecretBox) *notification.Dispatcher {
		return notification.NewDispatcher(repo, &recordingQueue{}, metrics.Nop{},
			notification.DispatcherConfig{MaxRetries: 3, TTL: time.Hour, Secrets: box},
			discardLogger(),
		).WithClock(clock.Now)
	}

	t.Run("only ciphertext is stored", func(t *testing.T) {
		repo := newMemoryRepo()

		n, err := newDispatcher(repo, box).Create(context.Background(), notification.CreateRequest{
			UserID:  uuid.New(),
			Type:    domain.NotificationPatientInvite,
			Title:   "Invite",
			Message: "Join",
			Data:    map[string]interface{}{"nutritionistName": "Dr. Silva"},
			Secret:  "raw-invite-token",
		})
		require.NoError(t, err)

		stored := repo.snapshot(n.ID)
		assert.NotContains(t, string(stored.Data), "raw-invite-token")

		var data map[string]string
		require.NoError(t, json.Unmarshal(stored.Data, &data))
		assert.Equal(t, "Dr. Silva", data["nutritionistName"])
		assert.NotContains(t, data, "token")

		opened, err := box.Open(n.ID, data[notification.SecretDataKey])
		require.NoError(t, err)
		assert.Equal(t, "raw-invite-token", opened)
	})

	t.Run("caller data cannot carry a sealed field", func(t *testing.T) {
		repo := newMemoryRepo()

		n, err := newDispatcher(repo, box).Create(context.Background(), notification.CreateRequest{
			UserID:  uuid.New(),
			Type:    domain.NotificationGeneric,
			Title:   "t",
			Message: "m",
			Data:    map[string]interface{}{notification.SecretDataKey: "forged"},
		})
		require.NoError(t, err)
		assert.Empty(t, repo.snapshot(n.ID).Data)
	})

	t.Run("secret without a secret box is refused", func(t *testing.T) {
		repo := newMemoryRepo()

		_, err := newDispatcher(repo, nil).Create(context.Background(), notification.CreateRequest{
			UserID:  uuid.New(),
			Type:    domain.NotificationPasswordReset,
			Title:   "Reset",
			Message: "Reset",
			Secret:  "raw-reset-token",
		})
		require.Error(t, err)
		assert.Empty(t, repo.items)
	})
}
