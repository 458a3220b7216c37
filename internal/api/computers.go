package api

import "net/http"

func (s *Server) handleComputerList(w http.ResponseWriter, r *http.Request) {
	if query := r.URL.Query().Get("q"); query != "" {
		computers, err := s.dir.Computers.Search(r.Context(), query)
		if err != nil {
			s.writeDirectoryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, computers)
		return
	}
	computers, err := s.dir.Computers.List(r.Context())
	if err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, computers)
}

func (s *Server) handleComputerGet(w http.ResponseWriter, r *http.Request) {
	dn := dnParam(w, r, "dn")
	if dn == "" {
		return
	}
	computer, err := s.dir.Computers.Get(r.Context(), dn)
	if err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, computer)
}
