package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleGPOList(w http.ResponseWriter, r *http.Request) {
	gpos, err := s.dir.GPOs.List(r.Context())
	if err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gpos)
}

func (s *Server) handleGPOGet(w http.ResponseWriter, r *http.Request) {
	gpo, err := s.dir.GPOs.Get(r.Context(), chi.URLParam(r, "guid"))
	if err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gpo)
}

func (s *Server) handleGPOLinks(w http.ResponseWriter, r *http.Request) {
	gpo, err := s.dir.GPOs.Get(r.Context(), chi.URLParam(r, "guid"))
	if err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	links, err := s.dir.GPOs.LinkedOUs(r.Context(), gpo.DN)
	if err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, links)
}
