package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/isometry/admanager/internal/audit"
	"github.com/isometry/admanager/internal/directory"
)

func (s *Server) handleDNSZones(w http.ResponseWriter, r *http.Request) {
	zones, err := s.dir.DNS.Zones(r.Context())
	if err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, zones)
}

// zoneFromPath resolves the {zone} path segment to a zone. Returns nil
// after writing the error response on failure.
func (s *Server) zoneFromPath(w http.ResponseWriter, r *http.Request) *directory.DNSZone {
	name := chi.URLParam(r, "zone")
	zone, err := s.dir.DNS.ZoneByName(r.Context(), name)
	if err != nil {
		s.writeDirectoryError(w, r, err)
		return nil
	}
	return zone
}

func (s *Server) handleDNSRecords(w http.ResponseWriter, r *http.Request) {
	zone := s.zoneFromPath(w, r)
	if zone == nil {
		return
	}
	records, err := s.dir.DNS.Records(r.Context(), zone.DN)
	if err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

type createRecordRequest struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
	TTL   uint32 `json:"ttl"`
}

func (s *Server) handleDNSCreateRecord(w http.ResponseWriter, r *http.Request) {
	zone := s.zoneFromPath(w, r)
	if zone == nil {
		return
	}
	var req createRecordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	record, err := s.dir.DNS.CreateRecord(r.Context(), &directory.CreateRecordRequest{
		ZoneDN: zone.DN,
		Name:   req.Name,
		Type:   req.Type,
		Value:  req.Value,
		TTL:    req.TTL,
	})
	if err != nil {
		s.record(r, audit.CategoryDNS, "dns.record.create", zone.Name, err.Error(), false)
		s.writeDirectoryError(w, r, err)
		return
	}
	s.record(r, audit.CategoryDNS, "dns.record.create", record.NodeDN, req.Type+" "+req.Value, true)
	writeJSON(w, http.StatusCreated, record)
}

type updateRecordRequest struct {
	NodeDN   string `json:"nodeDn"`
	Type     string `json:"type"`
	OldValue string `json:"oldValue"`
	NewValue string `json:"newValue"`
	TTL      uint32 `json:"ttl"`
}

func (s *Server) handleDNSUpdateRecord(w http.ResponseWriter, r *http.Request) {
	zone := s.zoneFromPath(w, r)
	if zone == nil {
		return
	}
	var req updateRecordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.NodeDN == "" {
		writeError(w, http.StatusBadRequest, "nodeDn required")
		return
	}

	err := s.dir.DNS.UpdateRecord(r.Context(), req.NodeDN, req.Type, req.OldValue, req.NewValue, req.TTL)
	if err != nil {
		s.record(r, audit.CategoryDNS, "dns.record.update", req.NodeDN, err.Error(), false)
		s.writeDirectoryError(w, r, err)
		return
	}
	s.record(r, audit.CategoryDNS, "dns.record.update", req.NodeDN, req.Type+" "+req.OldValue+" -> "+req.NewValue, true)
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

type deleteRecordRequest struct {
	NodeDN string `json:"nodeDn"`
	Type   string `json:"type"`
	Value  string `json:"value"`
}

func (s *Server) handleDNSDeleteRecord(w http.ResponseWriter, r *http.Request) {
	zone := s.zoneFromPath(w, r)
	if zone == nil {
		return
	}
	var req deleteRecordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.NodeDN == "" {
		writeError(w, http.StatusBadRequest, "nodeDn required")
		return
	}

	if err := s.dir.DNS.DeleteRecord(r.Context(), req.NodeDN, req.Type, req.Value); err != nil {
		s.record(r, audit.CategoryDNS, "dns.record.delete", req.NodeDN, err.Error(), false)
		s.writeDirectoryError(w, r, err)
		return
	}
	s.record(r, audit.CategoryDNS, "dns.record.delete", req.NodeDN, req.Type+" "+req.Value, true)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
