package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wneessen/go-mail"
)

// Email is a rendered message ready for transport
type Email struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Mailer is the email transport
type Mailer interface {
	Send(ctx context.Context, email *Email) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends email through an SMTP relay
type SMTPMailer struct {
	client *mail.Client
	from   string
}

func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return &SMTPMailer{client: client, from: cfg.From}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, email *Email) error {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(email.To); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(email.Subject)
	msg.SetBodyString(mail.TypeTextPlain, email.Text)
	msg.AddAlternativeString(mail.TypeTextHTML, email.HTML)

	return m.client.DialAndSendWithContext(ctx, msg)
}

// maxKeptEmails bounds the LogMailer buffer; older emails are dropped first
const maxKeptEmails = 100

// LogMailer logs emails instead of sending them. It keeps the most recent
// ones so development tooling and tests can read them back.
type LogMailer struct {
	logger *slog.Logger
	mu     sync.Mutex
	sent   []Email
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, email *Email) error {
	m.mu.Lock()
	if len(m.sent) >= maxKeptEmails {
		m.sent = append(m.sent[:0], m.sent[len(m.sent)-maxKeptEmails+1:]...)
	}
	m.sent = append(m.sent, *email)
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "email not sent, no SMTP host configured",
		slog.String("to", email.To),
		slog.String("subject", email.Subject),
	)
	return nil
}

// Sent returns a copy of the kept emails, oldest first
func (m *LogMailer) Sent() []Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Email(nil), m.sent...)
}
