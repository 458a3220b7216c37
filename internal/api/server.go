// Package api exposes the HTTP interface: authentication, directory
// management, notification administration and the audit log.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/isometry/admanager/internal/audit"
	"github.com/isometry/admanager/internal/authn"
	"github.com/isometry/admanager/internal/directory"
	adldap "github.com/isometry/admanager/internal/ldap"
	"github.com/isometry/admanager/internal/notify"
	"github.com/isometry/admanager/internal/store"
)

// Directory bundles the typed directory services the API serves.
type Directory struct {
	Users     *directory.Users
	Groups    *directory.Groups
	OUs       *directory.OUs
	Computers *directory.Computers
	GPOs      *directory.GPOs
	DNS       *directory.DNS
	Policy    *directory.Policy
}

// Server holds every dependency of the HTTP layer.
type Server struct {
	dir     Directory
	client  adldap.Client
	auth    *authn.Authenticator
	tokens  *authn.TokenIssuer
	store   *store.Store
	auditor audit.Recorder
	mailer  *notify.Mailer
	sweep   func() // triggers an on-demand expiry sweep, may be nil
	log     *zap.Logger
}

// NewServer wires the HTTP layer.
func NewServer(dir Directory, client adldap.Client, auth *authn.Authenticator, tokens *authn.TokenIssuer, st *store.Store, auditor audit.Recorder, mailer *notify.Mailer, sweep func(), log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		dir:     dir,
		client:  client,
		auth:    auth,
		tokens:  tokens,
		store:   st,
		auditor: auditor,
		mailer:  mailer,
		sweep:   sweep,
		log:     log.Named("api"),
	}
}

// Router builds the chi routing tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Post("/api/v1/auth/login", s.handleLogin)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authenticate)

		r.Get("/auth/me", s.handleMe)

		r.Route("/users", func(r chi.Router) {
			r.Get("/", s.handleUserList)
			r.Get("/{dn}", s.handleUserGet)
			r.Get("/{dn}/groups", s.handleUserGroups)

			r.Group(func(r chi.Router) {
				r.Use(s.requireRole(store.RoleHelpDesk))
				r.Post("/{dn}/reset-password", s.handleUserResetPassword)
				r.Post("/{dn}/unlock", s.handleUserUnlock)
				r.Post("/{dn}/enable", s.handleUserEnable)
				r.Post("/{dn}/disable", s.handleUserDisable)
			})

			r.Group(func(r chi.Router) {
				r.Use(s.requireRole(store.RoleAdmin))
				r.Post("/", s.handleUserCreate)
				r.Delete("/{dn}", s.handleUserDelete)
			})
		})

		r.Route("/groups", func(r chi.Router) {
			r.Get("/", s.handleGroupList)
			r.Get("/{dn}", s.handleGroupGet)
			r.Get("/{dn}/members", s.handleGroupMembers)

			// Membership edits are authorized per group: help desk and
			// above everywhere, group managers only where delegated.
			r.Post("/{dn}/members", s.handleGroupAddMember)
			r.Delete("/{dn}/members/{memberDN}", s.handleGroupRemoveMember)
		})

		r.Route("/ous", func(r chi.Router) {
			r.Get("/", s.handleOURoots)
			r.Get("/{dn}", s.handleOUGet)
			r.Get("/{dn}/children", s.handleOUChildren)
			r.Get("/{dn}/objects", s.handleOUObjects)
		})

		r.Route("/computers", func(r chi.Router) {
			r.Get("/", s.handleComputerList)
			r.Get("/{dn}", s.handleComputerGet)
		})

		r.Route("/gpos", func(r chi.Router) {
			r.Get("/", s.handleGPOList)
			r.Get("/{guid}", s.handleGPOGet)
			r.Get("/{guid}/links", s.handleGPOLinks)
		})

		r.Route("/dns", func(r chi.Router) {
			r.Get("/zones", s.handleDNSZones)
			r.Get("/zones/{zone}/records", s.handleDNSRecords)

			r.Group(func(r chi.Router) {
				r.Use(s.requireRole(store.RoleAdmin))
				r.Post("/zones/{zone}/records", s.handleDNSCreateRecord)
				r.Put("/zones/{zone}/records", s.handleDNSUpdateRecord)
				r.Delete("/zones/{zone}/records", s.handleDNSDeleteRecord)
			})
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Use(s.requireRole(store.RoleAdmin))
			r.Get("/config", s.handleNotificationConfig)
			r.Put("/config", s.handleNotificationConfigUpdate)
			r.Get("/templates", s.handleTemplateList)
			r.Put("/templates/{name}", s.handleTemplateUpdate)
			r.Get("/sent", s.handleSentNotifications)
			r.Post("/announce", s.handleAnnounce)
			r.Post("/test", s.handleTestSend)
			r.Post("/sweep", s.handleSweepTrigger)
		})

		r.Route("/delegations", func(r chi.Router) {
			r.Use(s.requireRole(store.RoleAdmin))
			r.Get("/", s.handleDelegationList)
			r.Post("/", s.handleDelegationAdd)
			r.Delete("/{dn}", s.handleDelegationRemove)
			r.Post("/{dn}/managers", s.handleDelegationAssignManager)
			r.Delete("/{dn}/managers/{profileID}", s.handleDelegationUnassignManager)
		})

		r.Route("/roles", func(r chi.Router) {
			r.Get("/", s.handleRoleCatalog)
			r.Group(func(r chi.Router) {
				r.Use(s.requireRole(store.RoleAdmin))
				r.Put("/{name}/group", s.handleRoleSetGroup)
			})
		})

		r.With(s.requireRole(store.RoleAdmin)).Get("/audit", s.handleAuditQuery)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.client.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":    "degraded",
			"directory": "unavailable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"pool":   s.client.Stats(),
	})
}

// dnParam decodes the URL-safe DN path segment named key. Returns "" and
// writes the error response when the segment is malformed.
func dnParam(w http.ResponseWriter, r *http.Request, key string) string {
	dn, err := adldap.DecodeDN(chi.URLParam(r, key))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed DN parameter")
		return ""
	}
	return dn
}

func (s *Server) record(r *http.Request, category, action, target, detail string, success bool) {
	if s.auditor == nil {
		return
	}
	_ = s.auditor.Record(r.Context(), audit.Entry{
		Actor:    actor(r),
		Category: category,
		Action:   action,
		Target:   target,
		Detail:   detail,
		ClientIP: clientIP(r),
		Success:  success,
	})
}
