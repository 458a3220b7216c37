package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/isometry/admanager/internal/store"
)

type fakeTemplates struct {
	tpl *store.EmailTemplate
	err error
}

func (f *fakeTemplates) Active(ctx context.Context, name string) (*store.EmailTemplate, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tpl, nil
}

type fakeConfigSource struct {
	cfg *store.NotificationConfig
}

func (f *fakeConfigSource) Config(ctx context.Context) (*store.NotificationConfig, error) {
	return f.cfg, nil
}

type fakeDeliveryLog struct {
	records []*store.SentNotification
}

func (f *fakeDeliveryLog) RecordSent(ctx context.Context, n *store.SentNotification) error {
	f.records = append(f.records, n)
	return nil
}

type fakeBackend struct {
	name   string
	sent   []*Message
	failTo map[string]error
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Send(ctx context.Context, msg *Message) error {
	if err, ok := f.failTo[msg.To]; ok {
		return err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func testMailer(cfg *store.NotificationConfig, backends map[string]*fakeBackend) (*Mailer, *fakeDeliveryLog) {
	deliveries := &fakeDeliveryLog{}
	m := &Mailer{
		templates: &fakeTemplates{tpl: &store.EmailTemplate{
			Name:     store.TemplatePasswordExpiry,
			Subject:  "Password expires in {{.DaysRemaining}} days",
			BodyText: "Hello {{.DisplayName}}",
		}},
		config:     &fakeConfigSource{cfg: cfg},
		deliveries: deliveries,
		factory: func(ctx context.Context, name string) (Backend, error) {
			backend, ok := backends[name]
			if !ok {
				return nil, errors.New("unknown backend " + name)
			}
			return backend, nil
		},
		fallbackSender: "fallback@example.com",
		log:            zap.NewNop(),
	}
	return m, deliveries
}

func TestSendRawContinuesOnFailure(t *testing.T) {
	smtp := &fakeBackend{name: "smtp", failTo: map[string]error{
		"b@example.com": errors.New("mailbox full"),
	}}
	m, deliveries := testMailer(
		&store.NotificationConfig{Backend: "smtp", Sender: "it@example.com"},
		map[string]*fakeBackend{"smtp": smtp})

	recipients := []string{"a@example.com", "b@example.com", "c@example.com"}
	results, err := m.SendRaw(context.Background(), "Maintenance window", "Saturday 02:00", "", recipients)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].Sent)
	assert.False(t, results[1].Sent)
	assert.Contains(t, results[1].Error, "mailbox full")
	assert.True(t, results[2].Sent, "a failed recipient must not stop the batch")

	// One delivery-log row per recipient, success or not.
	require.Len(t, deliveries.records, 3)
	for i, rec := range deliveries.records {
		assert.Equal(t, recipients[i], rec.Email)
		assert.Equal(t, "announcement", rec.Template)
	}
	assert.True(t, deliveries.records[0].Success)
	assert.False(t, deliveries.records[1].Success)
	assert.Equal(t, "mailbox full", deliveries.records[1].Error)

	require.Len(t, smtp.sent, 2)
	assert.Equal(t, "it@example.com", smtp.sent[0].From)
	assert.Equal(t, "Maintenance window", smtp.sent[0].Subject)
}

func TestBackendSwitchTakesEffectWithoutRestart(t *testing.T) {
	smtp := &fakeBackend{name: "smtp"}
	ses := &fakeBackend{name: "ses"}
	cfg := &store.NotificationConfig{Backend: "smtp", Sender: "it@example.com"}
	m, _ := testMailer(cfg, map[string]*fakeBackend{"smtp": smtp, "ses": ses})

	_, err := m.SendRaw(context.Background(), "s", "b", "", []string{"a@example.com"})
	require.NoError(t, err)
	assert.Len(t, smtp.sent, 1)
	assert.Empty(t, ses.sent)

	// The backend is resolved from the stored configuration on every
	// send, so an updated configuration is picked up immediately.
	cfg.Backend = "ses"
	_, err = m.SendRaw(context.Background(), "s", "b", "", []string{"a@example.com"})
	require.NoError(t, err)
	assert.Len(t, smtp.sent, 1)
	assert.Len(t, ses.sent, 1)
}

func TestSendTemplateSenderFallback(t *testing.T) {
	smtp := &fakeBackend{name: "smtp"}
	m, _ := testMailer(
		&store.NotificationConfig{Backend: "smtp"},
		map[string]*fakeBackend{"smtp": smtp})

	err := m.SendTemplate(context.Background(), store.TemplatePasswordExpiry, "jdoe@example.com", TemplateData{
		DisplayName:   "Jane Doe",
		DaysRemaining: 14,
	})
	require.NoError(t, err)
	require.Len(t, smtp.sent, 1)
	assert.Equal(t, "fallback@example.com", smtp.sent[0].From)
	assert.Equal(t, "Password expires in 14 days", smtp.sent[0].Subject)
	assert.Equal(t, "Hello Jane Doe", smtp.sent[0].BodyText)
}

func TestSendRawUnknownBackend(t *testing.T) {
	m, deliveries := testMailer(
		&store.NotificationConfig{Backend: "carrier-pigeon"},
		map[string]*fakeBackend{"smtp": {name: "smtp"}})

	_, err := m.SendRaw(context.Background(), "s", "b", "", []string{"a@example.com"})
	require.Error(t, err)
	assert.Empty(t, deliveries.records)
}
