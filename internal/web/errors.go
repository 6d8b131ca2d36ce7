package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is logged with its technical detail and request id, then
// returned to the client as the user message from core.MapError. The status
// code is derived from the same classification:
//
//	404  unknown request or missing attachment object
//	409  duplicate name (two imports racing for a tree name)
//	413  file too large
//	422  abort-class import errors (columns, root item, defaults, file type)
//	499  client went away
//	503  no import slot, store unreachable
//	504  import timed out
//	500  everything else

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/bomimport/internal/core"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusClientClosed is nginx's non-standard "client closed request".
const statusClientClosed = 499

// respondError logs err and writes its user message as JSON.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	userMsg := core.MapError(err)
	status := statusFor(err, userMsg.Code)

	slog.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "30")
	}
	respondErrorJSON(w, userMsg, status)
}

// respondBadRequest writes a 400 for malformed HTTP input that never reached core.
func respondBadRequest(w http.ResponseWriter, message, action string) {
	respondErrorJSON(w, core.UserMessage{Message: message, Action: action, Code: "HTTP400"}, http.StatusBadRequest)
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

// statusFor maps a classified error to an HTTP status.
func statusFor(err error, code string) int {
	switch {
	case errors.Is(err, core.ErrRequestNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case core.IsAbort(err):
		return http.StatusUnprocessableEntity
	}

	switch code {
	case "ATT001":
		return http.StatusNotFound
	case "DB001":
		return http.StatusConflict
	case "FILE001":
		return http.StatusRequestEntityTooLarge
	case "FILE003", "DB003":
		return http.StatusUnprocessableEntity
	case "IMP004":
		return statusClientClosed
	case "IMP005":
		return http.StatusGatewayTimeout
	case "DB004", "DB005":
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
