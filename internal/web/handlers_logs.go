package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleListUploadLogs returns recent upload logs, newest first.
func (s *Server) handleListUploadLogs(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", 50)
	logs, err := s.service.ListUploadLogs(r.Context(), limit)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs, "count": len(logs)})
}

// handleGetUploadLog returns one upload log.
func (s *Server) handleGetUploadLog(w http.ResponseWriter, r *http.Request) {
	log, err := s.service.GetUploadLog(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, log)
}

// handleUploadLogPage renders the summary page for one upload log.
func (s *Server) handleUploadLogPage(w http.ResponseWriter, r *http.Request) {
	log, err := s.service.GetUploadLog(r.Context(), chi.URLParam(r, "uploadID"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := UploadLogPage(log).Render(r.Context(), w); err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
	}
}
