package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"kidchat-backend/internal/models"
)

func dialSession(t *testing.T, hub *Hub, srv *httptest.Server, sessionID uuid.UUID) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?session_id=" + sessionID.String()

	before := hub.connectionCount(sessionID)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.connectionCount(sessionID) == before {
		if time.Now().After(deadline) {
			t.Fatalf("connection was never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}
	return conn
}

func TestHub_LocalPublishReachesSocket(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	sessionID := uuid.New()
	conn := dialSession(t, hub, srv, sessionID)
	defer conn.Close()

	hub.Publish(context.Background(), sessionID, models.WSMessage{
		Type:    models.WSTypeTyping,
		Payload: models.TypingEvent{SessionID: sessionID},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	var msg struct {
		Type    string             `json:"type"`
		Payload models.TypingEvent `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("failed to decode event: %v", err)
	}
	if msg.Type != models.WSTypeTyping || msg.Payload.SessionID != sessionID {
		t.Fatalf("unexpected event: %+v", msg)
	}
}

func TestHub_RejectsInvalidSessionID(t *testing.T) {
	hub := NewHub(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ws?session_id=nope", nil)
	rr := httptest.NewRecorder()
	hub.HandleWebSocket(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestHub_PublishWithoutSocketsIsNoop(t *testing.T) {
	hub := NewHub(nil)
	hub.Publish(context.Background(), uuid.New(), models.WSMessage{Type: models.WSTypeReply})
}

func TestHub_ConcurrentPublishesAllArrive(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	sessionID := uuid.New()
	conn := dialSession(t, hub, srv, sessionID)
	defer conn.Close()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.Publish(context.Background(), sessionID, models.WSMessage{Type: models.WSTypeReply})
		}()
	}
	wg.Wait()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for i := 0; i < n; i++ {
		if _, _, err := conn.ReadMessage(); err != nil {
			t.Fatalf("read %d failed: %v", i, err)
		}
	}
}

func TestHub_SlowSocketDoesNotHoldHubLock(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	slowID := uuid.New()
	conn := dialSession(t, hub, srv, slowID)
	defer conn.Close()

	// Stall the socket's writer as a blocked network write would.
	hub.mu.Lock()
	slow := hub.connections[slowID][0]
	hub.mu.Unlock()
	slow.writeMu.Lock()

	done := make(chan struct{})
	go func() {
		hub.broadcast(slowID, []byte(`{"type":"reply"}`))
		close(done)
	}()

	other := dialSession(t, hub, srv, uuid.New())
	defer other.Close()

	select {
	case <-done:
		t.Fatalf("broadcast should still be waiting on the stalled socket")
	default:
	}

	slow.writeMu.Unlock()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("broadcast did not finish after the socket was released")
	}
}
