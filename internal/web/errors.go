package web

// errors.go provides unified error response handling for the web layer.
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err)
//  3. The status code is chosen from the error's sentinel via statusFor
//  4. The error is mapped via core.MapError to a user-friendly message
//  5. Technical error + context is logged with the request ID for correlation
//  6. The message is rendered as an HTMX fragment, JSON or plain text

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/sheetqr/internal/core"
	"github.com/JonMunkholm/sheetqr/internal/logging"
	"github.com/JonMunkholm/sheetqr/internal/web/templates"
	"github.com/go-chi/chi/v5/middleware"
)

// errNoFile is returned when a multipart upload has no "file" part.
var errNoFile = errors.New("no file provided")

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Action    string `json:"action,omitempty"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// statusFor picks the HTTP status for an error returned by the service.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes), errors.Is(err, core.ErrFileTooLarge),
		strings.Contains(err.Error(), "request body too large"):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, core.ErrParse), errors.Is(err, core.ErrEmptyWorkbook):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrInvalidFilenameSpec), errors.Is(err, core.ErrInvalidRenderSpec),
		errors.Is(err, errNoFile), errors.Is(err, errInvalidBody):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrSessionNotFound), errors.Is(err, core.ErrSheetNotFound),
		errors.Is(err, core.ErrCodeNotFound), errors.Is(err, core.ErrNoBatch):
		return http.StatusNotFound
	case errors.Is(err, core.ErrTooManyBatches):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}

// userMessage maps err to a message, covering the web layer's own errors
// before falling back to core.MapError.
func userMessage(err error) core.UserMessage {
	if errors.Is(err, errInvalidBody) {
		return core.UserMessage{
			Message: "The batch settings could not be read",
			Action:  "Send the settings as a JSON object or as form fields",
			Code:    "REQ001",
		}
	}
	return core.MapError(err)
}

// respondError logs err with request context and writes a user-friendly
// response in the format the client asked for.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := userMessage(err)
	requestID := middleware.GetReqID(r.Context())

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "30")
	}
	writeUserMessage(w, r, userMsg, requestID, status)
}

// writeError responds with a fixed message that does not come from a service
// error, such as the rate limiter's rejection.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	msg := core.MapError(errors.New(message))
	if msg.Code == "ERR000" {
		msg = core.UserMessage{Message: message, Code: "HTTP" + strconv.Itoa(status)}
	}
	writeUserMessage(w, r, msg, middleware.GetReqID(r.Context()), status)
}

func writeUserMessage(w http.ResponseWriter, r *http.Request, msg core.UserMessage, requestID string, status int) {
	switch {
	case isHTMX(r):
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_ = templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w)
	case wantsJSON(r):
		writeJSON(w, status, ErrorResponse{
			Error:     msg.Message,
			Message:   msg.Message,
			Action:    msg.Action,
			Code:      msg.Code,
			RequestID: requestID,
		})
	default:
		http.Error(w, msg.Message+" ("+msg.Code+")", status)
	}
}

// isHTMX checks if the request is an HTMX request.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON checks if the client prefers a JSON response. API routes
// default to JSON.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}
