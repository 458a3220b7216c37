package api

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"github.com/isometry/admanager/internal/store"
)

func (s *Server) handleAuditQuery(w http.ResponseWriter, r *http.Request) {
	q := store.AuditQuery{
		Actor:    r.URL.Query().Get("actor"),
		Category: r.URL.Query().Get("category"),
	}
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since timestamp, want RFC 3339")
			return
		}
		q.Since = t
	}
	if v := r.URL.Query().Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid until timestamp, want RFC 3339")
			return
		}
		q.Until = t
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		q.Limit = n
	}

	entries, err := s.store.Audit.Query(r.Context(), q)
	if err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}

	switch r.URL.Query().Get("format") {
	case "", "json":
		writeJSON(w, http.StatusOK, entries)
	case "csv":
		writeAuditCSV(w, entries)
	default:
		writeError(w, http.StatusBadRequest, `format must be "json" or "csv"`)
	}
}

func writeAuditCSV(w http.ResponseWriter, entries []*store.AuditEntry) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="audit.csv"`)
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"id", "created_at", "actor", "category", "action", "target", "detail", "client_ip", "success"})
	for _, e := range entries {
		_ = cw.Write([]string{
			strconv.FormatInt(e.ID, 10),
			e.CreatedAt.UTC().Format(time.RFC3339),
			e.Actor,
			e.Category,
			e.Action,
			e.Target,
			e.Detail,
			e.ClientIP,
			strconv.FormatBool(e.Success),
		})
	}
	cw.Flush()
}
