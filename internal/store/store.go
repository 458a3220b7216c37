// Package store persists application state that does not belong in the
// directory: profiles, role assignments, delegations, email templates,
// notification bookkeeping and the audit trail. Backed by PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Store wraps the database handle and exposes the per-concern stores.
type Store struct {
	db  *sql.DB
	log *zap.Logger

	Profiles      *ProfileStore
	Roles         *RoleStore
	Delegations   *DelegationStore
	Templates     *TemplateStore
	Notifications *NotificationStore
	Audit         *AuditStore
}

// Open connects to Postgres, verifies the connection and prepares the
// per-concern stores. The caller owns the returned Store and must Close it.
func Open(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log = log.Named("store")
	s := &Store{db: db, log: log}
	s.Profiles = &ProfileStore{db: db}
	s.Roles = &RoleStore{db: db}
	s.Delegations = &DelegationStore{db: db}
	s.Templates = &TemplateStore{db: db}
	s.Notifications = &NotificationStore{db: db}
	s.Audit = &AuditStore{db: db}

	log.Info("database connected")
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the schema when absent and seeds the role catalog,
// notification config row and default email templates. Idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	for _, ddl := range schema {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	if err := s.Roles.seed(ctx); err != nil {
		return err
	}
	if err := s.Notifications.seedConfig(ctx); err != nil {
		return err
	}
	if err := s.Templates.seedDefaults(ctx); err != nil {
		return err
	}

	s.log.Info("schema migrated")
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		id           BIGSERIAL PRIMARY KEY,
		guid         TEXT NOT NULL UNIQUE,
		username     TEXT NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		email        TEXT NOT NULL DEFAULT '',
		dn           TEXT NOT NULL,
		last_login   TIMESTAMPTZ,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_profiles_username ON profiles (username)`,

	`CREATE TABLE IF NOT EXISTS roles (
		id       BIGSERIAL PRIMARY KEY,
		name     TEXT NOT NULL UNIQUE,
		priority INT NOT NULL,
		group_dn TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS role_assignments (
		profile_id  BIGINT NOT NULL REFERENCES profiles (id) ON DELETE CASCADE,
		role_id     BIGINT NOT NULL REFERENCES roles (id) ON DELETE CASCADE,
		assigned_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (profile_id, role_id)
	)`,

	`CREATE TABLE IF NOT EXISTS delegated_groups (
		id          BIGSERIAL PRIMARY KEY,
		group_dn    TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS group_manager_assignments (
		profile_id         BIGINT NOT NULL REFERENCES profiles (id) ON DELETE CASCADE,
		delegated_group_id BIGINT NOT NULL REFERENCES delegated_groups (id) ON DELETE CASCADE,
		assigned_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (profile_id, delegated_group_id)
	)`,

	`CREATE TABLE IF NOT EXISTS email_templates (
		id         BIGSERIAL PRIMARY KEY,
		name       TEXT NOT NULL UNIQUE,
		subject    TEXT NOT NULL,
		body_text  TEXT NOT NULL DEFAULT '',
		body_html  TEXT NOT NULL DEFAULT '',
		active     BOOLEAN NOT NULL DEFAULT true,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS notification_config (
		id         INT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
		enabled    BOOLEAN NOT NULL DEFAULT false,
		warn_days  TEXT NOT NULL DEFAULT '30,14,7,3,1',
		backend    TEXT NOT NULL DEFAULT 'smtp',
		sender     TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS sent_notifications (
		id             BIGSERIAL PRIMARY KEY,
		user_dn        TEXT NOT NULL,
		email          TEXT NOT NULL,
		template       TEXT NOT NULL,
		threshold_days INT NOT NULL DEFAULT 0,
		success        BOOLEAN NOT NULL,
		error          TEXT NOT NULL DEFAULT '',
		sent_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sent_notifications_user ON sent_notifications (user_dn, sent_at)`,

	`CREATE TABLE IF NOT EXISTS audit_entries (
		id         BIGSERIAL PRIMARY KEY,
		actor      TEXT NOT NULL,
		category   TEXT NOT NULL,
		action     TEXT NOT NULL,
		target     TEXT NOT NULL DEFAULT '',
		detail     TEXT NOT NULL DEFAULT '',
		client_ip  TEXT NOT NULL DEFAULT '',
		success    BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_entries_created ON audit_entries (created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_entries_actor ON audit_entries (actor)`,
}
