package api

import (
	"net/http"

	"github.com/isometry/admanager/internal/audit"
	"github.com/isometry/admanager/internal/directory"
	"github.com/isometry/admanager/internal/notify"
	"github.com/isometry/admanager/internal/password"
	"github.com/isometry/admanager/internal/store"
)

func (s *Server) handleUserList(w http.ResponseWriter, r *http.Request) {
	if query := r.URL.Query().Get("q"); query != "" {
		users, err := s.dir.Users.Search(r.Context(), query)
		if err != nil {
			s.writeDirectoryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, users)
		return
	}
	users, err := s.dir.Users.List(r.Context())
	if err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleUserGet(w http.ResponseWriter, r *http.Request) {
	dn := dnParam(w, r, "dn")
	if dn == "" {
		return
	}
	user, err := s.dir.Users.Get(r.Context(), dn)
	if err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleUserGroups(w http.ResponseWriter, r *http.Request) {
	dn := dnParam(w, r, "dn")
	if dn == "" {
		return
	}
	groups, err := s.dir.Groups.GroupsOfUser(r.Context(), dn)
	if err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

type createUserRequest struct {
	ParentDN          string `json:"parentDn"`
	SAMAccountName    string `json:"sAMAccountName"`
	UserPrincipalName string `json:"userPrincipalName"`
	GivenName         string `json:"givenName"`
	Surname           string `json:"surname"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	Description       string `json:"description"`
	Password          string `json:"password"`
	SendWelcome       bool   `json:"sendWelcome"`
}

type createUserResponse struct {
	User *directory.User `json:"user"`
	// GeneratedPassword is set only when no password was supplied.
	GeneratedPassword string `json:"generatedPassword,omitempty"`
}

func (s *Server) handleUserCreate(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeBody(w, r, &req) {
		return
	}

	generated := ""
	if req.Password == "" {
		pw, err := password.Generate(password.DefaultGenerateLength)
		if err != nil {
			s.writeDirectoryError(w, r, err)
			return
		}
		req.Password = pw
		generated = pw
	} else if violations := password.Validate(req.Password); len(violations) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":      "password does not meet policy",
			"violations": violations,
		})
		return
	}

	user, err := s.dir.Users.Create(r.Context(), &directory.CreateUserRequest{
		ParentDN:          req.ParentDN,
		SAMAccountName:    req.SAMAccountName,
		UserPrincipalName: req.UserPrincipalName,
		GivenName:         req.GivenName,
		Surname:           req.Surname,
		DisplayName:       req.DisplayName,
		Mail:              req.Mail,
		Description:       req.Description,
		Password:          req.Password,
	})
	if err != nil {
		s.record(r, audit.CategoryUser, "user.create", req.SAMAccountName, err.Error(), false)
		s.writeDirectoryError(w, r, err)
		return
	}
	s.record(r, audit.CategoryUser, "user.create", user.DN, "", true)

	if req.SendWelcome && user.Mail != "" && s.mailer != nil {
		if err := s.mailer.SendTemplate(r.Context(), store.TemplateWelcome, user.Mail, notify.TemplateData{
			Username:    user.SAMAccountName,
			DisplayName: user.DisplayName,
		}); err != nil {
			// The account exists; a failed welcome mail is not a
			// failed creation.
			s.record(r, audit.CategoryNotification, "notification.welcome", user.DN, err.Error(), false)
		}
	}

	writeJSON(w, http.StatusCreated, createUserResponse{User: user, GeneratedPassword: generated})
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

type resetPasswordResponse struct {
	GeneratedPassword string `json:"generatedPassword,omitempty"`
}

func (s *Server) handleUserResetPassword(w http.ResponseWriter, r *http.Request) {
	dn := dnParam(w, r, "dn")
	if dn == "" {
		return
	}
	var req resetPasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	generated := ""
	if req.Password == "" {
		pw, err := password.Generate(password.DefaultGenerateLength)
		if err != nil {
			s.writeDirectoryError(w, r, err)
			return
		}
		req.Password = pw
		generated = pw
	} else if violations := password.Validate(req.Password); len(violations) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":      "password does not meet policy",
			"violations": violations,
		})
		return
	}

	if err := s.dir.Users.ResetPassword(r.Context(), dn, req.Password); err != nil {
		s.record(r, audit.CategoryUser, "user.reset_password", dn, err.Error(), false)
		s.writeDirectoryError(w, r, err)
		return
	}
	s.record(r, audit.CategoryUser, "user.reset_password", dn, "", true)
	writeJSON(w, http.StatusOK, resetPasswordResponse{GeneratedPassword: generated})
}

func (s *Server) handleUserUnlock(w http.ResponseWriter, r *http.Request) {
	dn := dnParam(w, r, "dn")
	if dn == "" {
		return
	}
	if err := s.dir.Users.Unlock(r.Context(), dn); err != nil {
		s.record(r, audit.CategoryUser, "user.unlock", dn, err.Error(), false)
		s.writeDirectoryError(w, r, err)
		return
	}
	s.record(r, audit.CategoryUser, "user.unlock", dn, "", true)
	writeJSON(w, http.StatusOK, map[string]string{"status": "unlocked"})
}

func (s *Server) handleUserEnable(w http.ResponseWriter, r *http.Request) {
	s.setUserEnabled(w, r, true)
}

func (s *Server) handleUserDisable(w http.ResponseWriter, r *http.Request) {
	s.setUserEnabled(w, r, false)
}

func (s *Server) setUserEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	dn := dnParam(w, r, "dn")
	if dn == "" {
		return
	}
	action := "user.disable"
	if enabled {
		action = "user.enable"
	}
	if err := s.dir.Users.SetEnabled(r.Context(), dn, enabled); err != nil {
		s.record(r, audit.CategoryUser, action, dn, err.Error(), false)
		s.writeDirectoryError(w, r, err)
		return
	}
	s.record(r, audit.CategoryUser, action, dn, "", true)
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": enabled})
}

func (s *Server) handleUserDelete(w http.ResponseWriter, r *http.Request) {
	dn := dnParam(w, r, "dn")
	if dn == "" {
		return
	}
	if err := s.dir.Users.Delete(r.Context(), dn); err != nil {
		s.record(r, audit.CategoryUser, "user.delete", dn, err.Error(), false)
		s.writeDirectoryError(w, r, err)
		return
	}
	s.record(r, audit.CategoryUser, "user.delete", dn, "", true)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
