package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/isometry/admanager/internal/audit"
	"github.com/isometry/admanager/internal/notify"
	"github.com/isometry/admanager/internal/store"
)

func (s *Server) handleNotificationConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.Notifications.Config(r.Context())
	if err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled":    cfg.Enabled,
		"warnDays":   cfg.WarnDays,
		"thresholds": cfg.Thresholds(),
		"backend":    cfg.Backend,
		"sender":     cfg.Sender,
	})
}

type notificationConfigRequest struct {
	Enabled  bool   `json:"enabled"`
	WarnDays string `json:"warnDays"`
	Backend  string `json:"backend"`
	Sender   string `json:"sender"`
}

func (s *Server) handleNotificationConfigUpdate(w http.ResponseWriter, r *http.Request) {
	var req notificationConfigRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Backend != "smtp" && req.Backend != "ses" {
		writeError(w, http.StatusBadRequest, `backend must be "smtp" or "ses"`)
		return
	}
	cfg := &store.NotificationConfig{
		Enabled:  req.Enabled,
		WarnDays: req.WarnDays,
		Backend:  req.Backend,
		Sender:   req.Sender,
	}
	if req.WarnDays != "" && len(cfg.Thresholds()) == 0 {
		writeError(w, http.StatusBadRequest, "warnDays contains no usable day values")
		return
	}
	if err := s.store.Notifications.UpdateConfig(r.Context(), cfg); err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	s.record(r, audit.CategoryAdmin, "notification.config.update", "", req.WarnDays, true)
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleTemplateList(w http.ResponseWriter, r *http.Request) {
	templates, err := s.store.Templates.List(r.Context())
	if err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

type templateUpdateRequest struct {
	Subject  string `json:"subject"`
	BodyText string `json:"bodyText"`
	BodyHTML string `json:"bodyHtml"`
	Active   bool   `json:"active"`
}

func (s *Server) handleTemplateUpdate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req templateUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Subject == "" || req.BodyText == "" {
		writeError(w, http.StatusBadRequest, "subject and bodyText required")
		return
	}
	err := s.store.Templates.Update(r.Context(), &store.EmailTemplate{
		Name:     name,
		Subject:  req.Subject,
		BodyText: req.BodyText,
		BodyHTML: req.BodyHTML,
		Active:   req.Active,
	})
	if err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	s.record(r, audit.CategoryAdmin, "notification.template.update", name, "", true)
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleSentNotifications(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	sent, err := s.store.Notifications.RecentSent(r.Context(), limit)
	if err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sent)
}

type announceRequest struct {
	Subject    string   `json:"subject"`
	BodyText   string   `json:"bodyText"`
	BodyHTML   string   `json:"bodyHtml"`
	Recipients []string `json:"recipients"`
}

func (s *Server) handleAnnounce(w http.ResponseWriter, r *http.Request) {
	var req announceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Subject == "" || req.BodyText == "" {
		writeError(w, http.StatusBadRequest, "subject and bodyText required")
		return
	}
	if len(req.Recipients) == 0 {
		writeError(w, http.StatusBadRequest, "at least one recipient required")
		return
	}

	results, err := s.mailer.SendRaw(r.Context(), req.Subject, req.BodyText, req.BodyHTML, req.Recipients)
	if err != nil {
		s.record(r, audit.CategoryNotification, "notification.announce", "", req.Subject, false)
		writeError(w, http.StatusBadGateway, "bulk send failed: "+err.Error())
		return
	}

	sent := 0
	for _, res := range results {
		if res.Sent {
			sent++
		}
	}
	s.record(r, audit.CategoryNotification, "notification.announce", "",
		fmt.Sprintf("%d/%d delivered: %s", sent, len(results), req.Subject), sent == len(results))
	writeJSON(w, http.StatusOK, map[string]any{
		"sent":    sent,
		"failed":  len(results) - sent,
		"results": results,
	})
}

type testSendRequest struct {
	Recipient string `json:"recipient"`
	Template  string `json:"template"`
}

// handleTestSend delivers one template render to a chosen address so an
// administrator can verify backend and template configuration.
func (s *Server) handleTestSend(w http.ResponseWriter, r *http.Request) {
	var req testSendRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Recipient == "" {
		writeError(w, http.StatusBadRequest, "recipient required")
		return
	}
	if req.Template == "" {
		req.Template = store.TemplatePasswordExpiry
	}

	expires := time.Now().AddDate(0, 0, 14)
	err := s.mailer.SendTemplate(r.Context(), req.Template, req.Recipient, notify.TemplateData{
		Username:      actor(r),
		DisplayName:   actor(r),
		DaysRemaining: 14,
		ExpiresAt:     notify.FormatExpiry(expires),
	})
	if err != nil {
		s.record(r, audit.CategoryNotification, "notification.test", req.Recipient, req.Template, false)
		writeError(w, http.StatusBadGateway, "test send failed: "+err.Error())
		return
	}
	s.record(r, audit.CategoryNotification, "notification.test", req.Recipient, req.Template, true)
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (s *Server) handleSweepTrigger(w http.ResponseWriter, r *http.Request) {
	if s.sweep == nil {
		writeError(w, http.StatusServiceUnavailable, "sweep worker not running")
		return
	}
	s.sweep()
	s.record(r, audit.CategoryNotification, "notification.sweep.trigger", "", "", true)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sweep requested"})
}
