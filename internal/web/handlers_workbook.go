package web

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/sheetqr/internal/logging"
	"github.com/JonMunkholm/sheetqr/internal/web/templates"
	"github.com/go-chi/chi/v5"
)

// handleUploadWorkbook loads an uploaded spreadsheet or CSV file into a new
// session and returns its sheet summary.
func (s *Server) handleUploadWorkbook(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) || strings.Contains(err.Error(), "request body too large") {
			respondError(w, r, err)
			return
		}
		respondError(w, r, fmt.Errorf("%w: %v", errNoFile, err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, errNoFile)
		return
	}
	defer file.Close()

	sess, err := s.service.LoadWorkbook(r.Context(), header.Filename, file, logger)
	if err != nil {
		respondError(w, r, err)
		return
	}

	summary := sess.Summary()
	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusCreated)
		if err := templates.WorkbookSummary(summary, s.service.DefaultRenderSpec()).Render(r.Context(), w); err != nil {
			logger.Error("render workbook summary", "error", err)
		}
		return
	}
	writeJSON(w, http.StatusCreated, summary)
}

// handleListWorkbooks lists loaded files, newest first.
func (s *Server) handleListWorkbooks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Sessions())
}

// handleGetWorkbook returns the sheet summary of a loaded file.
func (s *Server) handleGetWorkbook(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Session(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Summary())
}

// handleDeleteWorkbook drops a loaded file and its last batch.
func (s *Server) handleDeleteWorkbook(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteSession(chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePreviewSheet returns the first rows of a sheet.
func (s *Server) handlePreviewSheet(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", defaultPreviewRows)
	preview, err := s.service.Preview(chi.URLParam(r, "id"), pathParam(r, "sheet"), limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}
