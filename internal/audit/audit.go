// Package audit records administrative actions to the database and the
// structured log. Storage failures are returned to the caller, not
// swallowed: an action that cannot be audited is a problem the caller
// decides how to handle.
package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/isometry/admanager/internal/store"
)

// Categories group related actions for filtering.
const (
	CategoryAuth         = "auth"
	CategoryUser         = "user"
	CategoryGroup        = "group"
	CategoryDNS          = "dns"
	CategoryNotification = "notification"
	CategoryAdmin        = "admin"
)

// Entry is one auditable event.
type Entry struct {
	Actor    string // sAMAccountName of the acting user, or "system"
	Category string
	Action   string // e.g. "user.create", "group.member.add"
	Target   string // DN or other identifier the action touched
	Detail   string
	ClientIP string
	Success  bool
}

// Recorder writes audit entries.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

type recorder struct {
	store *store.AuditStore
	log   *zap.Logger
}

// NewRecorder builds a Recorder over the audit store.
func NewRecorder(s *store.AuditStore, log *zap.Logger) Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &recorder{store: s, log: log.Named("audit")}
}

func (r *recorder) Record(ctx context.Context, e Entry) error {
	r.log.Info("audit",
		zap.String("actor", e.Actor),
		zap.String("category", e.Category),
		zap.String("action", e.Action),
		zap.String("target", e.Target),
		zap.String("client_ip", e.ClientIP),
		zap.Bool("success", e.Success))

	err := r.store.Insert(ctx, &store.AuditEntry{
		Actor:    e.Actor,
		Category: e.Category,
		Action:   e.Action,
		Target:   e.Target,
		Detail:   e.Detail,
		ClientIP: e.ClientIP,
		Success:  e.Success,
	})
	if err != nil {
		r.log.Error("audit entry not persisted", zap.String("action", e.Action), zap.Error(err))
		return err
	}
	return nil
}
