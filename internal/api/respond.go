package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	adldap "github.com/isometry/admanager/internal/ldap"
	"github.com/isometry/admanager/internal/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeDirectoryError maps the directory error taxonomy onto HTTP status
// codes. Unknown errors become 500 with a generic body so internal detail
// stays in the log.
func (s *Server) writeDirectoryError(w http.ResponseWriter, r *http.Request, err error) {
	var derr *adldap.DirectoryError
	if errors.As(err, &derr) {
		status := http.StatusInternalServerError
		message := derr.Message
		switch derr.Kind {
		case adldap.KindUnavailable:
			status = http.StatusServiceUnavailable
			message = "directory unavailable"
		case adldap.KindNotFound:
			status = http.StatusNotFound
		case adldap.KindAlreadyExists:
			status = http.StatusConflict
		case adldap.KindPermissionDenied:
			status = http.StatusForbidden
		case adldap.KindInvalidInput:
			status = http.StatusBadRequest
		case adldap.KindInvalidCredentials:
			status = http.StatusUnauthorized
		}
		if status == http.StatusInternalServerError {
			s.log.Error("directory error", zap.String("path", r.URL.Path), zap.Error(err))
			message = "directory operation failed"
		}
		writeError(w, status, message)
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
