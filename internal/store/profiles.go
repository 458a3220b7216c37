package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a queried row does not exist.
var ErrNotFound = errors.New("not found")

// Profile mirrors a directory user inside the application database. The
// directory stays the source of truth; profiles exist so roles, delegations
// and audit entries have a stable local key.
type Profile struct {
	ID          int64
	GUID        string
	Username    string
	DisplayName string
	Email       string
	DN          string
	LastLogin   time.Time
	CreatedAt   time.Time
}

// ProfileStore persists profiles.
type ProfileStore struct {
	db *sql.DB
}

// Upsert inserts or refreshes a profile keyed by directory GUID and stamps
// its last login. Returns the stored row.
func (s *ProfileStore) Upsert(ctx context.Context, p *Profile) (*Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO profiles (guid, username, display_name, email, dn, last_login)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (guid) DO UPDATE SET
			username = EXCLUDED.username,
			display_name = EXCLUDED.display_name,
			email = EXCLUDED.email,
			dn = EXCLUDED.dn,
			last_login = now()
		RETURNING id, guid, username, display_name, email, dn, last_login, created_at`,
		p.GUID, p.Username, p.DisplayName, p.Email, p.DN)

	return scanProfile(row)
}

// ByID fetches a profile by primary key.
func (s *ProfileStore) ByID(ctx context.Context, id int64) (*Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, guid, username, display_name, email, dn, last_login, created_at
		FROM profiles WHERE id = $1`, id)
	return scanProfile(row)
}

// ByUsername fetches a profile by sAMAccountName.
func (s *ProfileStore) ByUsername(ctx context.Context, username string) (*Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, guid, username, display_name, email, dn, last_login, created_at
		FROM profiles WHERE username = $1`, username)
	return scanProfile(row)
}

func scanProfile(row *sql.Row) (*Profile, error) {
	var p Profile
	var lastLogin sql.NullTime
	err := row.Scan(&p.ID, &p.GUID, &p.Username, &p.DisplayName, &p.Email, &p.DN, &lastLogin, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	if lastLogin.Valid {
		p.LastLogin = lastLogin.Time
	}
	return &p, nil
}
