package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// NotificationConfig is the singleton expiry-notification configuration.
// WarnDays is stored as a comma-separated list, e.g. "30,14,7,3,1".
type NotificationConfig struct {
	Enabled   bool
	WarnDays  string
	Backend   string // "smtp" or "ses"
	Sender    string
	UpdatedAt time.Time
}

// Thresholds parses WarnDays into a sorted, de-duplicated day list.
// Malformed or non-positive entries are dropped.
func (c *NotificationConfig) Thresholds() []int {
	seen := make(map[int]bool)
	var days []int
	for _, part := range strings.Split(c.WarnDays, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n <= 0 || seen[n] {
			continue
		}
		seen[n] = true
		days = append(days, n)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(days)))
	return days
}

// SentNotification records a single delivery attempt, success or failure.
// The table is append-only: one row per attempt, never updated.
type SentNotification struct {
	ID            int64
	UserDN        string
	Email         string
	Template      string
	ThresholdDays int
	Success       bool
	Error         string
	SentAt        time.Time
}

// NotificationStore persists notification configuration and the delivery log.
type NotificationStore struct {
	db *sql.DB
}

func (s *NotificationStore) seedConfig(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_config (id) VALUES (1)
		ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("seed notification config: %w", err)
	}
	return nil
}

// Config returns the singleton configuration.
func (s *NotificationStore) Config(ctx context.Context) (*NotificationConfig, error) {
	var c NotificationConfig
	err := s.db.QueryRowContext(ctx, `
		SELECT enabled, warn_days, backend, sender, updated_at
		FROM notification_config WHERE id = 1`).
		Scan(&c.Enabled, &c.WarnDays, &c.Backend, &c.Sender, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("query notification config: %w", err)
	}
	return &c, nil
}

// UpdateConfig replaces the singleton configuration.
func (s *NotificationStore) UpdateConfig(ctx context.Context, c *NotificationConfig) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE notification_config
		SET enabled = $1, warn_days = $2, backend = $3, sender = $4, updated_at = now()
		WHERE id = 1`,
		c.Enabled, c.WarnDays, c.Backend, c.Sender)
	if err != nil {
		return fmt.Errorf("update notification config: %w", err)
	}
	return nil
}

// RecordSent appends one delivery attempt.
func (s *NotificationStore) RecordSent(ctx context.Context, n *SentNotification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sent_notifications (user_dn, email, template, threshold_days, success, error)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		n.UserDN, n.Email, n.Template, n.ThresholdDays, n.Success, n.Error)
	if err != nil {
		return fmt.Errorf("record sent notification: %w", err)
	}
	return nil
}

// SentToday reports whether a successful delivery for the same user,
// template and threshold already happened today (UTC). Used to suppress
// duplicates when the expiry job runs more than once per day.
func (s *NotificationStore) SentToday(ctx context.Context, userDN, template string, thresholdDays int) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM sent_notifications
			WHERE user_dn = $1 AND template = $2 AND threshold_days = $3
			  AND success
			  AND sent_at >= date_trunc('day', now() AT TIME ZONE 'utc')
		)`, userDN, template, thresholdDays).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query sent notifications: %w", err)
	}
	return exists, nil
}

// RecentSent returns the latest delivery attempts, newest first.
func (s *NotificationStore) RecentSent(ctx context.Context, limit int) ([]*SentNotification, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_dn, email, template, threshold_days, success, error, sent_at
		FROM sent_notifications ORDER BY sent_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sent notifications: %w", err)
	}
	defer rows.Close()

	var sent []*SentNotification
	for rows.Next() {
		var n SentNotification
		if err := rows.Scan(&n.ID, &n.UserDN, &n.Email, &n.Template, &n.ThresholdDays, &n.Success, &n.Error, &n.SentAt); err != nil {
			return nil, fmt.Errorf("scan sent notification: %w", err)
		}
		sent = append(sent, &n)
	}
	return sent, rows.Err()
}
