// Package web provides helpers shared by the HTTP handlers.
package web

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// RespondJSON writes payload as JSON with the given status code.
// A nil payload is written as the JSON literal null.
func RespondJSON(w http.ResponseWriter, logger *slog.Logger, status int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Error encoding response to JSON", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(response)
}

func RespondError(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	RespondJSON(w, logger, status, map[string]string{"error": message})
}

// ParseInt64Param extracts an integer URL parameter. Negative values are returned as-is so that
// callers can apply their own range rules. Returns the value and a boolean indicating success.
func ParseInt64Param(w http.ResponseWriter, r *http.Request, logger *slog.Logger, key string) (int64, bool) {
	raw := chi.URLParam(r, key)
	if raw == "" {
		raw = r.PathValue(key)
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		RespondError(w, logger, http.StatusBadRequest, fmt.Sprintf("Invalid %s: %s", key, raw))
		return 0, false
	}
	return value, true
}
