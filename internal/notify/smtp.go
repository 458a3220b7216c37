package notify

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
)

// SMTPConfig configures the SMTP delivery backend.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	StartTLS bool
}

// SMTPBackend delivers mail over SMTP.
type SMTPBackend struct {
	cfg SMTPConfig
}

// NewSMTPBackend builds the SMTP backend.
func NewSMTPBackend(cfg SMTPConfig) *SMTPBackend {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPBackend{cfg: cfg}
}

func (b *SMTPBackend) Name() string { return "smtp" }

func (b *SMTPBackend) Send(ctx context.Context, msg *Message) error {
	m := mail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return fmt.Errorf("invalid sender %q: %w", msg.From, err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.BodyText)
	if msg.BodyHTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.BodyHTML)
	}

	opts := []mail.Option{mail.WithPort(b.cfg.Port)}
	if b.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(b.cfg.Username),
			mail.WithPassword(b.cfg.Password),
		)
	}
	if b.cfg.StartTLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	client, err := mail.NewClient(b.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}
