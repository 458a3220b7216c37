package api

import "net/http"

func (s *Server) handleOURoots(w http.ResponseWriter, r *http.Request) {
	ous, err := s.dir.OUs.Roots(r.Context())
	if err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ous)
}

func (s *Server) handleOUGet(w http.ResponseWriter, r *http.Request) {
	dn := dnParam(w, r, "dn")
	if dn == "" {
		return
	}
	ou, err := s.dir.OUs.Get(r.Context(), dn)
	if err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ou)
}

func (s *Server) handleOUChildren(w http.ResponseWriter, r *http.Request) {
	dn := dnParam(w, r, "dn")
	if dn == "" {
		return
	}
	children, err := s.dir.OUs.Children(r.Context(), dn)
	if err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, children)
}

func (s *Server) handleOUObjects(w http.ResponseWriter, r *http.Request) {
	dn := dnParam(w, r, "dn")
	if dn == "" {
		return
	}
	objects, err := s.dir.OUs.Objects(r.Context(), dn)
	if err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, objects)
}
