package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"kidchat-backend/internal/models"
)

func TestDiagnosticsHandler_Disabled(t *testing.T) {
	h := NewDiagnosticsHandler(nil)

	rr := httptest.NewRecorder()
	h.ListCompletions(rr, httptest.NewRequest(http.MethodGet, "/api/v1/diagnostics/completions", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, rr.Code)
	}
}

func TestDiagnosticsHandler_ListsRecent(t *testing.T) {
	store := &stubLogStore{entries: []*models.CompletionLogEntry{
		{ID: uuid.New(), Kind: "ok", Model: "qwen-turbo"},
		{ID: uuid.New(), Kind: "empty", Model: "qwen-turbo"},
	}}
	h := NewDiagnosticsHandler(store)

	tests := []struct {
		query     string
		wantLimit int
	}{
		{"", 20},
		{"?limit=5", 5},
		{"?limit=0", 20},
		{"?limit=500", 20},
		{"?limit=abc", 20},
	}

	for _, tc := range tests {
		rr := httptest.NewRecorder()
		h.ListCompletions(rr, httptest.NewRequest(http.MethodGet, "/api/v1/diagnostics/completions"+tc.query, nil))

		if rr.Code != http.StatusOK {
			t.Fatalf("query %q: expected status %d, got %d", tc.query, http.StatusOK, rr.Code)
		}
		if store.lastLim != tc.wantLimit {
			t.Fatalf("query %q: expected limit %d, got %d", tc.query, tc.wantLimit, store.lastLim)
		}

		var payload struct {
			Completions []models.CompletionLogEntry `json:"completions"`
		}
		json.NewDecoder(rr.Body).Decode(&payload)
		if len(payload.Completions) != 2 {
			t.Fatalf("query %q: expected 2 entries, got %d", tc.query, len(payload.Completions))
		}
	}
}

func TestDiagnosticsHandler_StoreError(t *testing.T) {
	h := NewDiagnosticsHandler(&stubLogStore{listErr: errors.New("db down")})

	rr := httptest.NewRecorder()
	h.ListCompletions(rr, httptest.NewRequest(http.MethodGet, "/api/v1/diagnostics/completions", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, rr.Code)
	}
}
