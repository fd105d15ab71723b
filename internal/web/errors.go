package web

// errors.go turns pipeline errors into HTTP responses. The technical error
// is logged with the request id; the client receives the mapped user
// message and support code.

import (
	"errors"
	"net/http"
	"strings"

	"github.com/lekhnak/uc-pathways-hub-sub000/internal/ingest"
	"github.com/lekhnak/uc-pathways-hub-sub000/internal/logging"
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor picks the HTTP status for a pipeline error.
func statusFor(err error) int {
	var parseErr *ingest.ParseError
	switch {
	case errors.Is(err, ingest.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case ingest.IsInputError(err):
		return http.StatusBadRequest
	case errors.As(err, &parseErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ingest.ErrUploadNotFound):
		return http.StatusNotFound
	case errors.Is(err, ingest.ErrTooManyUploads), errors.Is(err, ingest.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes the user-facing message. Page routes get
// plain text, API routes get JSON.
func respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	msg := ingest.MapError(err)

	logger := logging.FromContext(r.Context())
	args := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	}
	if status >= 500 {
		logger.Error("request error", args...)
	} else {
		logger.Warn("request error", args...)
	}

	if !wantsJSON(r) {
		http.Error(w, msg.Message+" ("+msg.Code+")", status)
		return
	}
	writeJSON(w, status, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// wantsJSON reports whether the client expects a JSON error body.
func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
