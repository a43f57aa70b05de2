package notification_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/dom/nutrition-practice/internal/notification"
	"github.com/dom/nutrition-practice/internal/websocket"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingMailer struct {
	err error
}

func (m failingMailer) Send(context.Context, *notification.Email) error {
	return m.err
}

type recordingPusher struct {
	userID uuid.UUID
	msgs   []*websocket.Message
	count  int
}

func (p *recordingPusher) SendToUser(userID uuid.UUID, msg *websocket.Message) int {
	p.userID = userID
	p.msgs = append(p.msgs, msg)
	return p.count
}

func TestEmailSender_Send(t *testing.T) {
	templates, err := notification.NewTemplates("https://app.example.com")
	require.NoError(t, err)

	user := &domain.User{ID: uuid.New(), Name: "Ana", Email: "ana@example.com"}
	users := &fakeUsers{users: map[uuid.UUID]*domain.User{user.ID: user}}
	mailer := notification.NewLogMailer(discardLogger())
	sender := notification.NewEmailSender(users, templates, mailer, nil)

	err = sender.Send(context.Background(), &domain.Notification{
		ID:      uuid.New(),
		UserID:  user.ID,
		Type:    domain.NotificationGeneric,
		Title:   "Hello",
		Message: "Body",
	})
	require.NoError(t, err)

	sent := mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "ana@example.com", sent[0].To)
	assert.Equal(t, "Hello", sent[0].Subject)
}

func TestLogMailer_KeepsRecentEmails(t *testing.T) {
	mailer := notification.NewLogMailer(discardLogger())
	ctx := context.Background()

	for i := 0; i < 150; i++ {
		require.NoError(t, mailer.Send(ctx, &notification.Email{
			To:      "ana@example.com",
			Subject: fmt.Sprintf("email %d", i),
		}))
	}

	sent := mailer.Sent()
	require.Len(t, sent, 100)
	assert.Equal(t, "email 50", sent[0].Subject)
	assert.Equal(t, "email 149", sent[99].Subject)
}

func TestEmailSender_Errors(t *testing.T) {
	templates, err := notification.NewTemplates("https://app.example.com")
	require.NoError(t, err)

	known := &domain.User{ID: uuid.New(), Name: "Ana", Email: "ana@example.com"}
	noEmail := &domain.User{ID: uuid.New(), Name: "Bob"}
	dbErr := errors.New("db unavailable")

	tests := []struct {
		name      string
		users     *fakeUsers
		mailer    notification.Mailer
		userID    uuid.UUID
		wantIs    error
		wantSendE bool
	}{
		{
			name:   "unknown user",
			users:  &fakeUsers{users: map[uuid.UUID]*domain.User{}},
			mailer: notification.NewLogMailer(discardLogger()),
			userID: uuid.New(),
			wantIs: notification.ErrRecipientUnknown,
		},
		{
			name:   "user without email",
			users:  &fakeUsers{users: map[uuid.UUID]*domain.User{noEmail.ID: noEmail}},
			mailer: notification.NewLogMailer(discardLogger()),
			userID: noEmail.ID,
			wantIs: notification.ErrRecipientUnknown,
		},
		{
			name:   "lookup failure",
			users:  &fakeUsers{err: dbErr},
			mailer: notification.NewLogMailer(discardLogger()),
			userID: known.ID,
			wantIs: dbErr,
		},
		{
			name:      "transport failure",
			users:     &fakeUsers{users: map[uuid.UUID]*domain.User{known.ID: known}},
			mailer:    failingMailer{err: errTransport},
			userID:    known.ID,
			wantIs:    errTransport,
			wantSendE: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := notification.NewEmailSender(tt.users, templates, tt.mailer, nil)

			err := sender.Send(context.Background(), &domain.Notification{
				ID:      uuid.New(),
				UserID:  tt.userID,
				Type:    domain.NotificationGeneric,
				Title:   "Hello",
				Message: "Body",
			})

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantIs)
			var sendErr *notification.SendError
			assert.Equal(t, tt.wantSendE, errors.As(err, &sendErr))
			if tt.wantSendE {
				assert.Equal(t, domain.ChannelEmail, sendErr.Channel)
			}
		})
	}
}

func TestInAppSender_Send(t *testing.T) {
	tests := []struct {
		name        string
		connections int
	}{
		{name: "user connected", connections: 2},
		{name: "user offline", connections: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pusher := &recordingPusher{count: tt.connections}
			sender := notification.NewInAppSender(pusher, discardLogger())

			n := &domain.Notification{
				ID:       uuid.New(),
				UserID:   uuid.New(),
				Type:     domain.NotificationDietPlanCreated,
				Title:    "New plan",
				Message:  "Check it out",
				Data:     []byte(`{"dietPlanId":"p1"}`),
				Priority: domain.PriorityHigh,
			}
			require.NoError(t, sender.Send(context.Background(), n))

			assert.Equal(t, n.UserID, pusher.userID)
			require.Len(t, pusher.msgs, 1)
			assert.Equal(t, websocket.MessageTypeNotification, pusher.msgs[0].Type)

			var payload notification.InAppPayload
			require.NoError(t, json.Unmarshal(pusher.msgs[0].Payload, &payload))
			assert.Equal(t, n.ID, payload.ID)
			assert.Equal(t, "New plan", payload.Title)
			assert.Equal(t, domain.PriorityHigh, payload.Priority)
			assert.JSONEq(t, `{"dietPlanId":"p1"}`, string(payload.Data))
		})
	}
}

func TestEmailSender_SealedSecret(t *testing.T) {
	templates, err := notification.NewTemplates("https://app.example.com")
	require.NoError(t, err)

	box := newSecretBox(t)
	user := &domain.User{ID: uuid.New(), Name: "Ana", Email: "ana@example.com"}
	users := &fakeUsers{users: map[uuid.UUID]*domain.User{user.ID: user}}

	resetFor := func(t *testing.T, id uuid.UUID, sealed string) *domain.Notification {
		data, err := json.Marshal(map[string]string{notification.SecretDataKey: sealed})
		require.NoError(t, err)
		return &domain.Notification{
			ID:      id,
			UserID:  user.ID,
			Type:    domain.NotificationPasswordReset,
			Title:   "Reset",
			Message: "Reset your password",
			Data:    data,
		}
	}

	t.Run("opened token reaches the email only", func(t *testing.T) {
		id := uuid.New()
		sealed, err := box.Seal(id, "reset-token-123")
		require.NoError(t, err)

		mailer := notification.NewLogMailer(discardLogger())
		sender := notification.NewEmailSender(users, templates, mailer, box)
		require.NoError(t, sender.Send(context.Background(), resetFor(t, id, sealed)))

		sent := mailer.Sent()
		require.Len(t, sent, 1)
		assert.Contains(t, sent[0].Text, "reset-password?token=reset-token-123")
		assert.Contains(t, sent[0].HTML, "reset-password?token=reset-token-123")
	})

	t.Run("unreadable secret is a permanent failure", func(t *testing.T) {
		sealed, err := box.Seal(uuid.New(), "reset-token-123")
		require.NoError(t, err)

		mailer := notification.NewLogMailer(discardLogger())
		sender := notification.NewEmailSender(users, templates, mailer, box)
		err = sender.Send(context.Background(), resetFor(t, uuid.New(), sealed))
		assert.ErrorIs(t, err, notification.ErrSecretUnreadable)
		assert.Empty(t, mailer.Sent())
	})

	t.Run("no secret box configured", func(t *testing.T) {
		mailer := notification.NewLogMailer(discardLogger())
		sender := notification.NewEmailSender(users, templates, mailer, nil)
		err := sender.Send(context.Background(), resetFor(t, uuid.New(), "anything"))
		assert.ErrorIs(t, err, notification.ErrSecretUnreadable)
	})
}
