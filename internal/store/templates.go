package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Default template names.
const (
	TemplatePasswordExpiry = "password_expiry"
	TemplatePasswordReset  = "password_reset"
	TemplateWelcome        = "welcome"
)

// EmailTemplate is a named mail template. Bodies are text/template input;
// the notify package defines the variables each template receives.
type EmailTemplate struct {
	ID        int64
	Name      string
	Subject   string
	BodyText  string
	BodyHTML  string
	Active    bool
	UpdatedAt time.Time
}

// TemplateStore persists email templates.
type TemplateStore struct {
	db *sql.DB
}

// Active returns the active template of the given name.
func (s *TemplateStore) Active(ctx context.Context, name string) (*EmailTemplate, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, subject, body_text, body_html, active, updated_at
		FROM email_templates WHERE name = $1 AND active`, name)
	return scanTemplate(row)
}

// List returns all templates.
func (s *TemplateStore) List(ctx context.Context) ([]*EmailTemplate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, subject, body_text, body_html, active, updated_at
		FROM email_templates ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()

	var templates []*EmailTemplate
	for rows.Next() {
		var t EmailTemplate
		if err := rows.Scan(&t.ID, &t.Name, &t.Subject, &t.BodyText, &t.BodyHTML, &t.Active, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, &t)
	}
	return templates, rows.Err()
}

// Update replaces a template's subject, bodies and active flag.
func (s *TemplateStore) Update(ctx context.Context, t *EmailTemplate) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE email_templates
		SET subject = $2, body_text = $3, body_html = $4, active = $5, updated_at = now()
		WHERE name = $1`,
		t.Name, t.Subject, t.BodyText, t.BodyHTML, t.Active)
	if err != nil {
		return fmt.Errorf("update template %s: %w", t.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// seedDefaults inserts the stock templates when missing. Operator edits
// survive re-runs.
func (s *TemplateStore) seedDefaults(ctx context.Context) error {
	defaults := []EmailTemplate{
		{
			Name:     TemplatePasswordExpiry,
			Subject:  "Your password expires in {{.DaysRemaining}} day(s)",
			BodyText: "Hello {{.DisplayName}},\n\nYour password for account {{.Username}} expires on {{.ExpiresAt}}. Please change it before then to avoid losing access.\n",
		},
		{
			Name:     TemplatePasswordReset,
			Subject:  "Your password has been reset",
			BodyText: "Hello {{.DisplayName}},\n\nThe password for account {{.Username}} was reset by an administrator. If you did not request this, contact the help desk immediately.\n",
		},
		{
			Name:     TemplateWelcome,
			Subject:  "Welcome, {{.DisplayName}}",
			BodyText: "Hello {{.DisplayName}},\n\nYour account {{.Username}} has been created. You can now sign in with the credentials provided to you separately.\n",
		},
	}

	for _, t := range defaults {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO email_templates (name, subject, body_text)
			VALUES ($1, $2, $3)
			ON CONFLICT (name) DO NOTHING`, t.Name, t.Subject, t.BodyText)
		if err != nil {
			return fmt.Errorf("seed template %s: %w", t.Name, err)
		}
	}
	return nil
}

func scanTemplate(row *sql.Row) (*EmailTemplate, error) {
	var t EmailTemplate
	err := row.Scan(&t.ID, &t.Name, &t.Subject, &t.BodyText, &t.BodyHTML, &t.Active, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan template: %w", err)
	}
	return &t, nil
}
