package web

// errors.go provides unified error responses for the API.
//
// Every error is logged with its technical detail and the request id, then
// returned to the client as a UserMessage from diag.MapError so the support
// code in the response matches the one the command-line tool prints.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/catalogsync/internal/core"
	"github.com/JonMunkholm/catalogsync/internal/diag"
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes it as an ErrorResponse. A zero status is
// derived from the error kind.
func respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	if status == 0 {
		status = statusFor(err)
	}
	msg := diag.MapError(err)

	slog.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)
	writeErrorJSON(w, msg, status)
}

func writeErrorJSON(w http.ResponseWriter, msg diag.UserMessage, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

// statusFor maps error kinds to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrSyncRunning):
		return http.StatusConflict
	case errors.Is(err, core.ErrSyncDisabled):
		return http.StatusNotFound
	case errors.Is(err, diag.ValidationError), errors.Is(err, diag.ResolutionError):
		return http.StatusUnprocessableEntity
	case errors.Is(err, diag.MergeConflictError), errors.Is(err, diag.CacheConsistencyError):
		return http.StatusConflict
	case errors.Is(err, diag.RemoteError):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON encodes v as JSON with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
