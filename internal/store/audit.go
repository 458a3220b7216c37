package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// AuditEntry is one immutable audit record. The store only inserts and
// queries; there is no update or delete path.
type AuditEntry struct {
	ID        int64
	Actor     string
	Category  string
	Action    string
	Target    string
	Detail    string
	ClientIP  string
	Success   bool
	CreatedAt time.Time
}

// AuditQuery filters Query. Zero values mean "no filter".
type AuditQuery struct {
	Actor    string
	Category string
	Since    time.Time
	Until    time.Time
	Limit    int
}

// AuditStore persists the audit trail.
type AuditStore struct {
	db *sql.DB
}

// Insert appends one audit entry.
func (s *AuditStore) Insert(ctx context.Context, e *AuditEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_entries (actor, category, action, target, detail, client_ip, success)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.Actor, e.Category, e.Action, e.Target, e.Detail, e.ClientIP, e.Success)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// Query returns matching entries, newest first.
func (s *AuditStore) Query(ctx context.Context, q AuditQuery) ([]*AuditEntry, error) {
	limit := q.Limit
	if limit <= 0 || limit > 1000 {
		limit = 200
	}

	where := "TRUE"
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.Actor != "" {
		where += " AND actor = " + arg(q.Actor)
	}
	if q.Category != "" {
		where += " AND category = " + arg(q.Category)
	}
	if !q.Since.IsZero() {
		where += " AND created_at >= " + arg(q.Since)
	}
	if !q.Until.IsZero() {
		where += " AND created_at <= " + arg(q.Until)
	}

	query := fmt.Sprintf(`
		SELECT id, actor, category, action, target, detail, client_ip, success, created_at
		FROM audit_entries WHERE %s ORDER BY created_at DESC LIMIT %s`, where, arg(limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	return scanAuditRows(rows)
}

func scanAuditRows(rows *sql.Rows) ([]*AuditEntry, error) {
	var entries []*AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.Actor, &e.Category, &e.Action, &e.Target, &e.Detail, &e.ClientIP, &e.Success, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
