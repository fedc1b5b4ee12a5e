package web

import (
	"net/http"

	"github.com/JonMunkholm/sheetqr/internal/core"
	"github.com/JonMunkholm/sheetqr/internal/logging"
	"github.com/JonMunkholm/sheetqr/internal/web/templates"
)

// handleIndex renders the upload page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Index(s.service.DefaultRenderSpec()).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render index", "error", err)
	}
}

type statusResponse struct {
	Status   string                  `json:"status"`
	Sessions int                     `json:"sessions"`
	Batches  core.BatchLimiterStatus `json:"batches"`
	Storage  string                  `json:"archive_store"`
}

// handleStatus reports batch slot usage and the number of loaded files.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Status:   "ok",
		Sessions: len(s.service.Sessions()),
		Batches:  s.service.LimiterStatus(),
		Storage:  s.cfg.Storage.Backend,
	})
}
