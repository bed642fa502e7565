package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"kidchat-backend/internal/handlers"
	"kidchat-backend/internal/middleware"
	"kidchat-backend/internal/services"
	"kidchat-backend/internal/websocket"
)

type fixedCompleter struct{}

func (fixedCompleter) Complete(ctx context.Context, prompt string) services.CompletionResult {
	return services.CompletionResult{Kind: services.CompletionOK, Text: "好的"}
}

func (fixedCompleter) Model() string { return "qwen-turbo" }

type resultCompleter struct {
	result services.CompletionResult
}

func (c resultCompleter) Complete(ctx context.Context, prompt string) services.CompletionResult {
	return c.result
}

func (resultCompleter) Model() string { return "qwen-turbo" }

func newTestRouter(t *testing.T) http.Handler {
	return newTestRouterWith(t, fixedCompleter{})
}

func newTestRouterWith(t *testing.T, c handlers.Completer) http.Handler {
	t.Helper()
	guard := services.NewMemorySessionGuard(time.Minute)
	t.Cleanup(guard.Stop)
	hub := websocket.NewHub(nil)

	chat := handlers.NewChatHandler(c, guard, hub, nil, handlers.ChatOptions{})
	return New(chat, handlers.NewDiagnosticsHandler(nil), hub, "http://localhost:3000")
}

func TestRouter_Routes(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		header     map[string]string
		wantStatus int
	}{
		{"health", http.MethodGet, "/health", "", nil, http.StatusOK},
		{"chat v1", http.MethodPost, "/api/v1/chat", `{"message":"你好"}`, nil, http.StatusOK},
		{"chat legacy path", http.MethodPost, "/api/chat", `{"message":"你好"}`, nil, http.StatusOK},
		{"chat bad session", http.MethodPost, "/api/v1/chat", `{"message":"你好"}`, map[string]string{"X-Session-ID": "bad"}, http.StatusBadRequest},
		{"diagnostics disabled", http.MethodGet, "/api/v1/diagnostics/completions", "", nil, http.StatusServiceUnavailable},
		{"chat wrong method", http.MethodGet, "/api/v1/chat", "", nil, http.StatusMethodNotAllowed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, bytes.NewReader([]byte(tc.body)))
			for k, v := range tc.header {
				req.Header.Set(k, v)
			}
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			if rr.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, rr.Code)
			}
			if rr.Header().Get(middleware.RequestIDHeader) == "" {
				t.Fatalf("expected request id header on every response")
			}
		})
	}
}

func TestRouter_LegacyChatErrorIsString(t *testing.T) {
	raw := json.RawMessage(`{"output":{}}`)
	tests := []struct {
		name       string
		result     services.CompletionResult
		body       string
		wantStatus int
		wantError  string
		wantReply  bool
	}{
		{
			name:       "provider failure",
			result:     services.CompletionResult{Kind: services.CompletionError, Message: services.MsgProviderError},
			body:       `{"message":"你好"}`,
			wantStatus: http.StatusInternalServerError,
			wantError:  services.MsgProviderError,
		},
		{
			name:       "empty reply",
			result:     services.CompletionResult{Kind: services.CompletionEmpty, Raw: raw, Message: services.MsgNoReply},
			body:       `{"message":"你好"}`,
			wantStatus: http.StatusOK,
			wantError:  services.MsgNoReply,
			wantReply:  true,
		},
		{
			name:       "blank message",
			body:       `{"message":"  "}`,
			wantStatus: http.StatusBadRequest,
			wantError:  services.MsgEmptyMessage,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouterWith(t, resultCompleter{result: tc.result})
			req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader([]byte(tc.body)))
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			if rr.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, rr.Code)
			}

			var body map[string]json.RawMessage
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			var msg string
			if err := json.Unmarshal(body["error"], &msg); err != nil {
				t.Fatalf("expected error to be a string, got %s", body["error"])
			}
			if msg != tc.wantError {
				t.Fatalf("expected error %q, got %q", tc.wantError, msg)
			}
			if tc.wantReply {
				if string(body["reply"]) != `""` {
					t.Fatalf("expected empty reply, got %s", body["reply"])
				}
				if string(body["raw"]) != string(raw) {
					t.Fatalf("expected raw payload, got %s", body["raw"])
				}
			}
		})
	}
}

func TestRouter_V1ChatErrorIsEnvelope(t *testing.T) {
	r := newTestRouterWith(t, resultCompleter{result: services.CompletionResult{
		Kind:    services.CompletionError,
		Message: services.MsgProviderError,
	}})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader([]byte(`{"message":"你好"}`)))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", rr.Code)
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "PROVIDER_ERROR" {
		t.Fatalf("expected PROVIDER_ERROR, got %q", body.Error.Code)
	}
}
