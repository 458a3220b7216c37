package notify

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/isometry/admanager/internal/store"
)

// announcementLabel tags bulk-send rows in the delivery log, where the
// template column otherwise names a stored template.
const announcementLabel = "announcement"

// TemplateData carries the variables email templates may reference. Fields
// irrelevant to a given template are left zero.
type TemplateData struct {
	Username      string
	DisplayName   string
	DaysRemaining int
	ExpiresAt     string
}

// RawResult is the outcome of one recipient in a bulk send.
type RawResult struct {
	Recipient string `json:"recipient"`
	Sent      bool   `json:"sent"`
	Error     string `json:"error,omitempty"`
}

// BackendFactory builds the delivery backend with the given configured
// name ("smtp" or "ses").
type BackendFactory func(ctx context.Context, name string) (Backend, error)

type templateSource interface {
	Active(ctx context.Context, name string) (*store.EmailTemplate, error)
}

type configSource interface {
	Config(ctx context.Context) (*store.NotificationConfig, error)
}

type deliveryLog interface {
	RecordSent(ctx context.Context, n *store.SentNotification) error
}

// Mailer renders stored templates and hands the result to a delivery
// backend. The backend and sender are resolved from the stored
// configuration on every send, so configuration changes take effect
// without a restart.
type Mailer struct {
	templates      templateSource
	config         configSource
	deliveries     deliveryLog
	factory        BackendFactory
	fallbackSender string
	log            *zap.Logger
}

// NewMailer builds a Mailer. fallbackSender is used when the stored
// configuration leaves the sender empty.
func NewMailer(templates *store.TemplateStore, notifications *store.NotificationStore, factory BackendFactory, fallbackSender string, log *zap.Logger) *Mailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Mailer{
		templates:      templates,
		config:         notifications,
		deliveries:     notifications,
		factory:        factory,
		fallbackSender: fallbackSender,
		log:            log.Named("mailer"),
	}
}

// resolve reads the current configuration and builds the matching backend.
func (m *Mailer) resolve(ctx context.Context) (Backend, string, error) {
	cfg, err := m.config.Config(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("load notification config: %w", err)
	}
	backend, err := m.factory(ctx, cfg.Backend)
	if err != nil {
		return nil, "", fmt.Errorf("build %q backend: %w", cfg.Backend, err)
	}
	sender := cfg.Sender
	if sender == "" {
		sender = m.fallbackSender
	}
	return backend, sender, nil
}

// SendTemplate renders the named active template with data and delivers it
// to the given address.
func (m *Mailer) SendTemplate(ctx context.Context, templateName, to string, data TemplateData) error {
	tpl, err := m.templates.Active(ctx, templateName)
	if err != nil {
		return fmt.Errorf("load template %q: %w", templateName, err)
	}

	subject, err := render(tpl.Name+".subject", tpl.Subject, data)
	if err != nil {
		return err
	}
	bodyText, err := render(tpl.Name+".text", tpl.BodyText, data)
	if err != nil {
		return err
	}
	var bodyHTML string
	if tpl.BodyHTML != "" {
		bodyHTML, err = render(tpl.Name+".html", tpl.BodyHTML, data)
		if err != nil {
			return err
		}
	}

	backend, sender, err := m.resolve(ctx)
	if err != nil {
		return err
	}
	msg := &Message{
		From:     sender,
		To:       to,
		Subject:  subject,
		BodyText: bodyText,
		BodyHTML: bodyHTML,
	}
	if err := backend.Send(ctx, msg); err != nil {
		return err
	}
	m.log.Info("mail sent",
		zap.String("template", templateName),
		zap.String("to", to),
		zap.String("backend", backend.Name()))
	return nil
}

// SendRaw delivers a prepared message to each recipient individually,
// recording one delivery-log row per recipient. A failing recipient does
// not stop the batch.
func (m *Mailer) SendRaw(ctx context.Context, subject, bodyText, bodyHTML string, recipients []string) ([]RawResult, error) {
	backend, sender, err := m.resolve(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]RawResult, 0, len(recipients))
	for _, to := range recipients {
		sendErr := backend.Send(ctx, &Message{
			From:     sender,
			To:       to,
			Subject:  subject,
			BodyText: bodyText,
			BodyHTML: bodyHTML,
		})

		res := RawResult{Recipient: to, Sent: sendErr == nil}
		record := &store.SentNotification{
			Email:    to,
			Template: announcementLabel,
			Success:  sendErr == nil,
		}
		if sendErr != nil {
			res.Error = sendErr.Error()
			record.Error = sendErr.Error()
			m.log.Error("bulk delivery failed",
				zap.String("to", to),
				zap.String("backend", backend.Name()),
				zap.Error(sendErr))
		}
		if err := m.deliveries.RecordSent(ctx, record); err != nil {
			m.log.Error("recording delivery attempt failed", zap.String("to", to), zap.Error(err))
		}
		results = append(results, res)
	}
	return results, nil
}

// FormatExpiry renders an expiry time for template use.
func FormatExpiry(t time.Time) string {
	return t.Format("Monday, 2 January 2006")
}

func render(name, text string, data TemplateData) (string, error) {
	tpl, err := template.New(name).Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}
	return buf.String(), nil
}
