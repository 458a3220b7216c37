package api

import (
	"errors"
	"net/http"
	"time"

	adldap "github.com/isometry/admanager/internal/ldap"

	"github.com/isometry/admanager/internal/authn"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token         string    `json:"token"`
	ExpiresAt     time.Time `json:"expiresAt"`
	Username      string    `json:"username"`
	DisplayName   string    `json:"displayName"`
	Roles         []string  `json:"roles"`
	EffectiveRole string    `json:"effectiveRole"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password required")
		return
	}

	session, err := s.auth.Login(r.Context(), req.Username, req.Password, clientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, authn.ErrRateLimited):
			writeError(w, http.StatusTooManyRequests, err.Error())
		case errors.Is(err, authn.ErrInvalidLogin):
			writeError(w, http.StatusUnauthorized, err.Error())
		case adldap.IsUnavailable(err):
			writeError(w, http.StatusServiceUnavailable, "directory unavailable")
		default:
			s.writeDirectoryError(w, r, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:         session.Token,
		ExpiresAt:     session.ExpiresAt,
		Username:      session.Profile.Username,
		DisplayName:   session.Profile.DisplayName,
		Roles:         session.Roles,
		EffectiveRole: session.EffectiveRole,
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"username":      claims.Username,
		"roles":         claims.Roles,
		"effectiveRole": claims.EffectiveRole,
		"expiresAt":     claims.ExpiresAt,
	})
}
