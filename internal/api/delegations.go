package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/isometry/admanager/internal/audit"
)

func (s *Server) handleDelegationList(w http.ResponseWriter, r *http.Request) {
	groups, err := s.store.Delegations.List(r.Context())
	if err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

type delegationRequest struct {
	GroupDN     string `json:"groupDn"`
	Description string `json:"description"`
}

func (s *Server) handleDelegationAdd(w http.ResponseWriter, r *http.Request) {
	var req delegationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.GroupDN == "" {
		writeError(w, http.StatusBadRequest, "groupDn required")
		return
	}
	// The group must exist before it can be delegated.
	if _, err := s.dir.Groups.Get(r.Context(), req.GroupDN); err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	group, err := s.store.Delegations.Add(r.Context(), req.GroupDN, req.Description)
	if err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	s.record(r, audit.CategoryAdmin, "delegation.add", req.GroupDN, "", true)
	writeJSON(w, http.StatusCreated, group)
}

func (s *Server) handleDelegationRemove(w http.ResponseWriter, r *http.Request) {
	dn := dnParam(w, r, "dn")
	if dn == "" {
		return
	}
	if err := s.store.Delegations.Remove(r.Context(), dn); err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	s.record(r, audit.CategoryAdmin, "delegation.remove", dn, "", true)
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

type assignManagerRequest struct {
	ProfileID int64 `json:"profileId"`
}

func (s *Server) handleDelegationAssignManager(w http.ResponseWriter, r *http.Request) {
	dn := dnParam(w, r, "dn")
	if dn == "" {
		return
	}
	var req assignManagerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ProfileID == 0 {
		writeError(w, http.StatusBadRequest, "profileId required")
		return
	}
	if err := s.store.Delegations.AssignManager(r.Context(), req.ProfileID, dn); err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	s.record(r, audit.CategoryAdmin, "delegation.manager.assign", dn,
		"profile "+strconv.FormatInt(req.ProfileID, 10), true)
	writeJSON(w, http.StatusOK, map[string]string{"status": "assigned"})
}

func (s *Server) handleDelegationUnassignManager(w http.ResponseWriter, r *http.Request) {
	dn := dnParam(w, r, "dn")
	if dn == "" {
		return
	}
	profileID, err := strconv.ParseInt(chi.URLParam(r, "profileID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid profile ID")
		return
	}
	if err := s.store.Delegations.UnassignManager(r.Context(), profileID, dn); err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	s.record(r, audit.CategoryAdmin, "delegation.manager.unassign", dn,
		"profile "+strconv.FormatInt(profileID, 10), true)
	writeJSON(w, http.StatusOK, map[string]string{"status": "unassigned"})
}

func (s *Server) handleRoleCatalog(w http.ResponseWriter, r *http.Request) {
	roles, err := s.store.Roles.Catalog(r.Context())
	if err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, roles)
}

type roleGroupRequest struct {
	GroupDN string `json:"groupDn"`
}

func (s *Server) handleRoleSetGroup(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req roleGroupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.GroupDN != "" {
		if _, err := s.dir.Groups.Get(r.Context(), req.GroupDN); err != nil {
			s.writeDirectoryError(w, r, err)
			return
		}
	}
	if err := s.store.Roles.SetGroupDN(r.Context(), name, req.GroupDN); err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	s.record(r, audit.CategoryAdmin, "role.group.set", name, req.GroupDN, true)
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}
