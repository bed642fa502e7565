package handlers

import (
	"log"
	"net/http"
	"strconv"

	"kidchat-backend/internal/models"
)

type DiagnosticsHandler struct {
	logRepo CompletionLogStore
}

// NewDiagnosticsHandler accepts a nil repo; the endpoint then reports itself
// disabled.
func NewDiagnosticsHandler(logRepo CompletionLogStore) *DiagnosticsHandler {
	return &DiagnosticsHandler{logRepo: logRepo}
}

func (h *DiagnosticsHandler) ListCompletions(w http.ResponseWriter, r *http.Request) {
	if h.logRepo == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResp("DIAGNOSTICS_DISABLED", "Completion log is not configured", r))
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	entries, err := h.logRepo.ListRecent(r.Context(), limit)
	if err != nil {
		log.Printf("Failed to list completions: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load completion log", r))
		return
	}
	if entries == nil {
		entries = []*models.CompletionLogEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"completions": entries,
		"limit":       limit,
	})
}
