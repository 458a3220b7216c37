package api

import (
	"net/http"

	"github.com/isometry/admanager/internal/audit"
	"github.com/isometry/admanager/internal/authn"
	"github.com/isometry/admanager/internal/store"
)

func (s *Server) handleGroupList(w http.ResponseWriter, r *http.Request) {
	if query := r.URL.Query().Get("q"); query != "" {
		groups, err := s.dir.Groups.Search(r.Context(), query)
		if err != nil {
			s.writeDirectoryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, groups)
		return
	}
	groups, err := s.dir.Groups.List(r.Context())
	if err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (s *Server) handleGroupGet(w http.ResponseWriter, r *http.Request) {
	dn := dnParam(w, r, "dn")
	if dn == "" {
		return
	}
	group, err := s.dir.Groups.Get(r.Context(), dn)
	if err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (s *Server) handleGroupMembers(w http.ResponseWriter, r *http.Request) {
	dn := dnParam(w, r, "dn")
	if dn == "" {
		return
	}
	members, err := s.dir.Groups.Members(r.Context(), dn)
	if err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

// mayEditGroup authorizes a membership edit on groupDN. Help desk and
// above edit any group; group managers only groups delegated to them.
func (s *Server) mayEditGroup(r *http.Request, groupDN string) (bool, error) {
	claims := claimsFrom(r)
	if claims == nil {
		return false, nil
	}
	if authn.RoleAtLeast(claims.EffectiveRole, store.RoleHelpDesk) {
		return true, nil
	}
	if claims.EffectiveRole != store.RoleGroupManager {
		return false, nil
	}
	profileID, err := claims.ProfileID()
	if err != nil {
		return false, nil
	}
	return s.store.Delegations.IsManagerOf(r.Context(), profileID, groupDN)
}

type memberRequest struct {
	MemberDN string `json:"memberDn"`
}

func (s *Server) handleGroupAddMember(w http.ResponseWriter, r *http.Request) {
	dn := dnParam(w, r, "dn")
	if dn == "" {
		return
	}
	var req memberRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.MemberDN == "" {
		writeError(w, http.StatusBadRequest, "memberDn required")
		return
	}

	allowed, err := s.mayEditGroup(r, dn)
	if err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "not authorized to manage this group")
		return
	}

	if err := s.dir.Groups.AddMember(r.Context(), dn, req.MemberDN); err != nil {
		s.record(r, audit.CategoryGroup, "group.member.add", dn, err.Error(), false)
		s.writeDirectoryError(w, r, err)
		return
	}
	s.record(r, audit.CategoryGroup, "group.member.add", dn, "member "+req.MemberDN, true)
	writeJSON(w, http.StatusOK, map[string]string{"status": "added"})
}

func (s *Server) handleGroupRemoveMember(w http.ResponseWriter, r *http.Request) {
	dn := dnParam(w, r, "dn")
	if dn == "" {
		return
	}
	memberDN := dnParam(w, r, "memberDN")
	if memberDN == "" {
		return
	}

	allowed, err := s.mayEditGroup(r, dn)
	if err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "not authorized to manage this group")
		return
	}

	if err := s.dir.Groups.RemoveMember(r.Context(), dn, memberDN); err != nil {
		s.record(r, audit.CategoryGroup, "group.member.remove", dn, err.Error(), false)
		s.writeDirectoryError(w, r, err)
		return
	}
	s.record(r, audit.CategoryGroup, "group.member.remove", dn, "member "+memberDN, true)
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}
