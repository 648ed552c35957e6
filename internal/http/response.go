package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/media"
)

// apiResponse is the envelope every JSON endpoint returns.
type apiResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Code    string `json:"code,omitempty"`
}

const (
	statusSuccess = "success"
	statusError   = "error"

	internalMessage = "Internal server error"
)

func writeJSON(w http.ResponseWriter, status int, body apiResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeOK(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, apiResponse{Status: statusSuccess, Message: message, Data: data})
}

// writeError maps err to a status code and a client-safe message. Details of
// internal failures are logged and never returned.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path)
		msg = internalMessage
	}
	if errors.Is(err, core.ErrConflict) {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, apiResponse{Status: statusError, Message: msg, Code: core.ErrorKind(err)})
}

func errorStatus(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, media.ErrFileTooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, media.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, core.ErrUploadRejected):
		return http.StatusBadRequest
	}

	switch core.ErrorKind(err) {
	case "invalid_amount", "unknown_category", "missing_field", "invalid_date", "invalid_input":
		return http.StatusBadRequest
	case "unauthenticated":
		return http.StatusUnauthorized
	case "unauthorized":
		return http.StatusForbidden
	case "not_found":
		return http.StatusNotFound
	case "conflict", "email_taken":
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeTooManyRequests(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusTooManyRequests, apiResponse{
		Status:  statusError,
		Message: "Rate limit exceeded. Please try again later.",
		Code:    "rate_limited",
	})
}
