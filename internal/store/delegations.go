package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DelegatedGroup is a directory group whose membership may be managed by
// non-privileged users holding the group_manager role.
type DelegatedGroup struct {
	ID          int64
	GroupDN     string
	Description string
	CreatedAt   time.Time
}

// DelegationStore persists delegated groups and their manager assignments.
type DelegationStore struct {
	db *sql.DB
}

// Add registers a group as delegated. Re-adding an existing group DN
// returns the existing row.
func (s *DelegationStore) Add(ctx context.Context, groupDN, description string) (*DelegatedGroup, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO delegated_groups (group_dn, description)
		VALUES ($1, $2)
		ON CONFLICT (group_dn) DO UPDATE SET description = EXCLUDED.description
		RETURNING id, group_dn, description, created_at`, groupDN, description)

	var g DelegatedGroup
	if err := row.Scan(&g.ID, &g.GroupDN, &g.Description, &g.CreatedAt); err != nil {
		return nil, fmt.Errorf("upsert delegated group: %w", err)
	}
	return &g, nil
}

// Remove deletes a delegated group and its manager assignments.
func (s *DelegationStore) Remove(ctx context.Context, groupDN string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM delegated_groups WHERE group_dn = $1`, groupDN)
	if err != nil {
		return fmt.Errorf("delete delegated group: %w", err)
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

// List returns all delegated groups.
func (s *DelegationStore) List(ctx context.Context) ([]*DelegatedGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, group_dn, description, created_at
		FROM delegated_groups ORDER BY group_dn`)
	if err != nil {
		return nil, fmt.Errorf("query delegated groups: %w", err)
	}
	defer rows.Close()

	var groups []*DelegatedGroup
	for rows.Next() {
		var g DelegatedGroup
		if err := rows.Scan(&g.ID, &g.GroupDN, &g.Description, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan delegated group: %w", err)
		}
		groups = append(groups, &g)
	}
	return groups, rows.Err()
}

// AssignManager grants a profile management of a delegated group.
func (s *DelegationStore) AssignManager(ctx context.Context, profileID int64, groupDN string) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO group_manager_assignments (profile_id, delegated_group_id)
		SELECT $1, id FROM delegated_groups WHERE group_dn = $2
		ON CONFLICT DO NOTHING`, profileID, groupDN)
	if err != nil {
		return fmt.Errorf("assign manager: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Either the group is not delegated or the assignment already
		// exists; distinguish so callers can report the former.
		var exists bool
		err := s.db.QueryRowContext(ctx, `
			SELECT EXISTS (SELECT 1 FROM delegated_groups WHERE group_dn = $1)`, groupDN).Scan(&exists)
		if err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
	}
	return nil
}

// UnassignManager revokes a profile's management of a delegated group.
func (s *DelegationStore) UnassignManager(ctx context.Context, profileID int64, groupDN string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM group_manager_assignments
		WHERE profile_id = $1
		  AND delegated_group_id = (SELECT id FROM delegated_groups WHERE group_dn = $2)`,
		profileID, groupDN)
	if err != nil {
		return fmt.Errorf("unassign manager: %w", err)
	}
	return nil
}

// IsManagerOf reports whether the profile manages the delegated group.
func (s *DelegationStore) IsManagerOf(ctx context.Context, profileID int64, groupDN string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM group_manager_assignments gma
			JOIN delegated_groups dg ON dg.id = gma.delegated_group_id
			WHERE gma.profile_id = $1 AND dg.group_dn = $2
		)`, profileID, groupDN).Scan(&exists)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("query manager assignment: %w", err)
	}
	return exists, nil
}

// GroupsManagedBy returns the delegated groups a profile manages.
func (s *DelegationStore) GroupsManagedBy(ctx context.Context, profileID int64) ([]*DelegatedGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT dg.id, dg.group_dn, dg.description, dg.created_at
		FROM delegated_groups dg
		JOIN group_manager_assignments gma ON gma.delegated_group_id = dg.id
		WHERE gma.profile_id = $1
		ORDER BY dg.group_dn`, profileID)
	if err != nil {
		return nil, fmt.Errorf("query managed groups: %w", err)
	}
	defer rows.Close()

	var groups []*DelegatedGroup
	for rows.Next() {
		var g DelegatedGroup
		if err := rows.Scan(&g.ID, &g.GroupDN, &g.Description, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan managed group: %w", err)
		}
		groups = append(groups, &g)
	}
	return groups, rows.Err()
}
