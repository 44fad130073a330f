package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/xraph/eventbus"
)

// maxLimit caps list queries regardless of what the caller asks for.
const maxLimit = 1000

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:      code,
		Message:   message,
		RequestID: requestIDFromContext(r.Context()),
	})
}

// writeMappedError turns a sentinel into a status code.
func writeMappedError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, eventbus.ErrStoreUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, "store_unavailable", err.Error())
	case errors.Is(err, eventbus.ErrEventNotFound), errors.Is(err, eventbus.ErrDLQNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, eventbus.ErrNotRunning):
		writeError(w, r, http.StatusServiceUnavailable, "not_running", err.Error())
	case errors.Is(err, eventbus.ErrUnknownEvent):
		writeError(w, r, http.StatusBadRequest, "unknown_event", err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

// parseLimit reads ?limit=. Missing means zero, which selects the store
// default.
func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	return min(n, maxLimit), nil
}
