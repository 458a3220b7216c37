package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Canonical role names. Priority decides which role wins when a user holds
// several.
const (
	RoleAdmin        = "admin"
	RoleHelpDesk     = "helpdesk"
	RoleGroupManager = "group_manager"
	RoleReadOnly     = "readonly"
)

// Role is one entry of the role catalog. GroupDN maps the role to a
// directory group; roles with an empty GroupDN are never assigned
// automatically at login.
type Role struct {
	ID       int64
	Name     string
	Priority int
	GroupDN  string
}

// RoleStore persists the role catalog and per-profile assignments.
type RoleStore struct {
	db *sql.DB
}

// seed inserts the canonical roles when missing. Mapped group DNs are
// deployment configuration and are left untouched on re-runs.
func (s *RoleStore) seed(ctx context.Context) error {
	seeds := []Role{
		{Name: RoleAdmin, Priority: 3},
		{Name: RoleHelpDesk, Priority: 2},
		{Name: RoleGroupManager, Priority: 1},
		{Name: RoleReadOnly, Priority: 0},
	}
	for _, r := range seeds {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO roles (name, priority) VALUES ($1, $2)
			ON CONFLICT (name) DO NOTHING`, r.Name, r.Priority)
		if err != nil {
			return fmt.Errorf("seed role %s: %w", r.Name, err)
		}
	}
	return nil
}

// Catalog returns all roles ordered by descending priority.
func (s *RoleStore) Catalog(ctx context.Context) ([]*Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, priority, group_dn FROM roles ORDER BY priority DESC`)
	if err != nil {
		return nil, fmt.Errorf("query roles: %w", err)
	}
	defer rows.Close()

	var roles []*Role
	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.ID, &r.Name, &r.Priority, &r.GroupDN); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, &r)
	}
	return roles, rows.Err()
}

// SetGroupDN updates the directory group a role maps to.
func (s *RoleStore) SetGroupDN(ctx context.Context, roleName, groupDN string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE roles SET group_dn = $2 WHERE name = $1`, roleName, groupDN)
	if err != nil {
		return fmt.Errorf("update role %s: %w", roleName, err)
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

// ReplaceAssignments replaces a profile's role set with exactly roleNames,
// inside one transaction. Concurrent replacements for the same profile
// serialize on the row deletes; the last commit wins with a complete set,
// never a merge of both.
func (s *RoleStore) ReplaceAssignments(ctx context.Context, profileID int64, roleNames []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM role_assignments WHERE profile_id = $1`, profileID); err != nil {
		return fmt.Errorf("clear assignments: %w", err)
	}

	for _, name := range roleNames {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO role_assignments (profile_id, role_id)
			SELECT $1, id FROM roles WHERE name = $2`, profileID, name); err != nil {
			return fmt.Errorf("assign role %s: %w", name, err)
		}
	}

	return tx.Commit()
}

// RolesForProfile returns the profile's roles ordered by descending priority.
func (s *RoleStore) RolesForProfile(ctx context.Context, profileID int64) ([]*Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.name, r.priority, r.group_dn
		FROM roles r
		JOIN role_assignments ra ON ra.role_id = r.id
		WHERE ra.profile_id = $1
		ORDER BY r.priority DESC`, profileID)
	if err != nil {
		return nil, fmt.Errorf("query profile roles: %w", err)
	}
	defer rows.Close()

	var roles []*Role
	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.ID, &r.Name, &r.Priority, &r.GroupDN); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, &r)
	}
	return roles, rows.Err()
}
