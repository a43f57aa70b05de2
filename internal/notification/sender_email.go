package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/google/uuid"
)

// UserGetter loads the recipient of a notification
type UserGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// EmailSender renders notifications with the email templates and sends them
// through a Mailer
type EmailSender struct {
	users     UserGetter
	templates *Templates
	mailer    Mailer
	secrets   *SecretBox
}

func NewEmailSender(users UserGetter, templates *Templates, mailer Mailer, secrets *SecretBox) *EmailSender {
	return &EmailSender{users: users, templates: templates, mailer: mailer, secrets: secrets}
}

func (s *EmailSender) Send(ctx context.Context, n *domain.Notification) error {
	user, err := s.users.GetByID(ctx, n.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		return ErrRecipientUnknown
	}
	if err != nil {
		return fmt.Errorf("load recipient: %w", err)
	}
	if user.Email == "" {
		return ErrRecipientUnknown
	}

	secret, err := s.openSecret(n)
	if err != nil {
		return err
	}

	email, err := s.templates.Render(n, user, secret)
	if err != nil {
		return err
	}

	if err := s.mailer.Send(ctx, email); err != nil {
		return &SendError{Channel: domain.ChannelEmail, Err: err}
	}
	return nil
}

func (s *EmailSender) openSecret(n *domain.Notification) (string, error) {
	sealed := sealedSecret(n)
	if sealed == "" {
		return "", nil
	}
	if s.secrets == nil {
		return "", ErrSecretUnreadable
	}
	return s.secrets.Open(n.ID, sealed)
}
