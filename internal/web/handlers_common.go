// Package web provides HTTP handlers for the QR generator.
// This file contains shared utilities and helper functions used across handlers.
package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/JonMunkholm/sheetqr/internal/core"
	"github.com/JonMunkholm/sheetqr/internal/logging"
	"github.com/go-chi/chi/v5"
)

const (
	// defaultPreviewRows is the sheet preview size when no limit is given.
	defaultPreviewRows = 5

	// maxBatchRequestSize bounds JSON batch settings bodies.
	maxBatchRequestSize = 1 << 20

	// multipartOverhead is allowed on top of the file size limit for form
	// boundaries and other fields.
	multipartOverhead = 1 << 20
)

// errInvalidBody is returned when batch settings cannot be decoded.
var errInvalidBody = errors.New("invalid request body")

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// pathParam returns a decoded URL parameter. Sheet and file names may
// contain spaces and other escaped characters.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

// clientIP returns the client address without the port. TrustedRealIP has
// already replaced RemoteAddr when the request came through a trusted proxy.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// batchRequest is the body of validate and generate calls.
type batchRequest struct {
	core.BatchRequest
	// Debug raises logging for this batch to debug level.
	Debug bool `json:"debug"`
}

// decodeBatchRequest reads batch settings from a JSON body or from form
// fields. Render settings missing from a form fall back to the service
// defaults.
func (s *Server) decodeBatchRequest(w http.ResponseWriter, r *http.Request) (batchRequest, error) {
	var req batchRequest

	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		body := http.MaxBytesReader(w, r.Body, maxBatchRequestSize)
		dec := json.NewDecoder(body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			return req, fmt.Errorf("%w: %v", errInvalidBody, err)
		}
		return req, nil
	}

	if err := r.ParseMultipartForm(maxBatchRequestSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return req, fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	form := r.Form

	req.Sheet = form.Get("sheet")
	req.Filename = core.FilenameSpec{
		URLColumn: form.Get("url_column"),
		Columns:   formList(form, "filename_columns"),
		Separator: form.Get("filename_separator"),
	}
	req.Debug, _ = strconv.ParseBool(form.Get("debug"))

	spec := s.service.DefaultRenderSpec()
	var err error
	if spec.ModuleSize, err = formInt(form, "module_size", spec.ModuleSize); err != nil {
		return req, fmt.Errorf("%w: module size: %v", core.ErrInvalidRenderSpec, err)
	}
	if spec.Border, err = formInt(form, "border", spec.Border); err != nil {
		return req, fmt.Errorf("%w: border: %v", core.ErrInvalidRenderSpec, err)
	}
	if _, present := form["output_resolution"]; present {
		px, ok := core.ParseOutputResolution(form.Get("output_resolution"))
		if !ok {
			logging.FromContext(r.Context()).Warn("ignoring non-numeric output resolution",
				"value", form.Get("output_resolution"))
		}
		spec.OutputResolution = px
	}
	req.Render = &spec

	return req, nil
}

// formList returns every value of a repeated field. A field sent once may
// hold a comma-separated list instead.
func formList(form url.Values, key string) []string {
	values := form[key]
	if len(values) == 1 {
		values = strings.Split(values[0], ",")
	}
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func formInt(form url.Values, key string, def int) (int, error) {
	v := strings.TrimSpace(form.Get(key))
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// batchLogger returns the logger for one batch. Debug requests get a
// dedicated debug-level logger so the process level stays unchanged.
func (s *Server) batchLogger(r *http.Request, debug bool) *slog.Logger {
	if !debug {
		return logging.FromContext(r.Context())
	}
	l := logging.New("debug", s.cfg.Logging.Format, os.Stderr)
	return logging.WithRequestID(r.Context(), l)
}

// codeURL is the download path of one generated code.
func codeURL(sessionID, name string) string {
	return "/api/workbooks/" + url.PathEscape(sessionID) + "/codes/" + url.PathEscape(name)
}
