package web

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/sheetqr/internal/core"
	"github.com/JonMunkholm/sheetqr/internal/logging"
	"github.com/JonMunkholm/sheetqr/internal/web/templates"
	"github.com/go-chi/chi/v5"
)

// validateResponse previews the filenames a batch would produce.
type validateResponse struct {
	Valid      bool                 `json:"valid"`
	Filenames  []core.PreparedRow   `json:"filenames"`
	Dropped    int                  `json:"dropped_rows"`
	Duplicates []core.DuplicateName `json:"duplicates,omitempty"`
}

// handleValidate checks batch settings and previews the first filenames
// without rendering anything.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	req, err := s.decodeBatchRequest(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.service.ValidateBatch(id, req.BatchRequest); err != nil {
		respondError(w, r, err)
		return
	}

	res, err := s.service.PreviewFilenames(id, req.BatchRequest, defaultPreviewRows, s.batchLogger(r, req.Debug))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{
		Valid:      true,
		Filenames:  res.Rows,
		Dropped:    res.Dropped,
		Duplicates: res.Duplicates,
	})
}

// codeResponse is one archive entry with its download path.
type codeResponse struct {
	core.ArchiveEntry
	URL string `json:"url"`
}

type generateResponse struct {
	Summary    string            `json:"summary"`
	Report     *core.BatchReport `json:"report"`
	ArchiveURL string            `json:"archive_url,omitempty"`
	Preview    []codeResponse    `json:"preview"`
}

// handleGenerate runs a batch. HTMX requests get the summary fragment;
// other clients get the report as JSON.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	req, err := s.decodeBatchRequest(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	logger := s.batchLogger(r, req.Debug)
	result, err := s.service.RunBatch(r.Context(), id, req.BatchRequest, logger)
	if err != nil {
		respondError(w, r, err)
		return
	}
	report, codes := result.Report, result.Archive.Entries

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.BatchSummary(id, report, codes).Render(r.Context(), w); err != nil {
			logging.FromContext(r.Context()).Error("render batch summary", "error", err)
		}
		return
	}

	resp := generateResponse{
		Summary: report.Summary(),
		Report:  report,
		Preview: codeList(id, codes, templates.PreviewLimit),
	}
	if report.Packed > 0 {
		resp.ArchiveURL = "/api/workbooks/" + id + "/archive"
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleReport returns the report of the last batch.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.Report(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleArchive downloads the last packed archive.
func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	arc, err := s.service.Archive(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, core.ArchiveFileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(arc.Data)))
	if _, err := w.Write(arc.Data); err != nil {
		logging.FromContext(r.Context()).Warn("archive download interrupted", "error", err)
	}
}

// handleListCodes lists the entries of the last archive.
func (s *Server) handleListCodes(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	codes, err := s.service.Codes(id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, codeList(id, codes, 0))
}

// handleGetCode serves one PNG from the last archive.
func (s *Server) handleGetCode(w http.ResponseWriter, r *http.Request) {
	data, err := s.service.Code(chi.URLParam(r, "id"), pathParam(r, "name"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=300")
	_, _ = w.Write(data)
}

// codeList adds download paths to entries. A positive limit keeps only the
// first entries.
func codeList(id string, entries []core.ArchiveEntry, limit int) []codeResponse {
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]codeResponse, len(entries))
	for i, e := range entries {
		out[i] = codeResponse{ArchiveEntry: e, URL: codeURL(id, e.Name)}
	}
	return out
}
