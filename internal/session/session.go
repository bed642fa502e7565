// Package session holds the client side of a conversation: the in-memory
// transcript for one terminal run and the rules for turning a server answer
// into something a child can read.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"kidchat-backend/internal/models"
	"kidchat-backend/internal/services"
)

const (
	FallbackReply     = "机器人未能回复，请稍后再试。"
	NetworkErrorReply = "网络错误，请重试。"
)

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrBusy         = errors.New("a message is already being sent")
)

type Session struct {
	ID         uuid.UUID
	chatURL    string
	httpClient *http.Client
	filter     bool

	mu       sync.Mutex
	messages []models.ChatMessage
	busy     bool
}

// New creates a session talking to the server at baseURL. When filter is
// set, replies are reduced to Chinese text before display.
func New(baseURL string, filter bool, timeout time.Duration) *Session {
	return &Session{
		ID:         uuid.New(),
		chatURL:    strings.TrimRight(baseURL, "/") + "/api/v1/chat",
		httpClient: &http.Client{Timeout: timeout},
		filter:     filter,
	}
}

type serverReply struct {
	Reply string          `json:"reply"`
	Raw   json.RawMessage `json:"raw"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Send posts text and appends both sides of the exchange to the transcript.
// Only ErrEmptyMessage and ErrBusy are returned; every other failure becomes
// the assistant message.
func (s *Session) Send(ctx context.Context, text string) (models.ChatMessage, error) {
	if strings.TrimSpace(text) == "" {
		return models.ChatMessage{}, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return models.ChatMessage{}, ErrBusy
	}
	s.busy = true
	s.messages = append(s.messages, models.ChatMessage{
		Role:      models.RoleUser,
		Content:   text,
		Timestamp: now(),
	})
	s.mu.Unlock()

	content := s.ask(ctx, text)

	reply := models.ChatMessage{
		Role:      models.RoleAssistant,
		Content:   content,
		Timestamp: now(),
	}

	s.mu.Lock()
	s.messages = append(s.messages, reply)
	s.busy = false
	s.mu.Unlock()

	return reply, nil
}

func (s *Session) ask(ctx context.Context, text string) string {
	body, err := json.Marshal(models.ChatRequest{Message: text})
	if err != nil {
		return NetworkErrorReply
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.chatURL, bytes.NewReader(body))
	if err != nil {
		return NetworkErrorReply
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Session-ID", s.ID.String())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return NetworkErrorReply
	}
	defer resp.Body.Close()

	var out serverReply
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return NetworkErrorReply
	}

	return s.displayReply(out)
}

// displayReply picks what to show: the reply, else the raw provider payload,
// else the error message, else a canned apology.
func (s *Session) displayReply(out serverReply) string {
	if out.Reply != "" {
		if s.filter {
			if filtered := services.FilterReply(out.Reply); filtered != "" {
				return filtered
			}
			return FallbackReply
		}
		return out.Reply
	}
	if len(out.Raw) > 0 && string(out.Raw) != "null" {
		return string(out.Raw)
	}
	if out.Error != nil && out.Error.Message != "" {
		return out.Error.Message
	}
	return FallbackReply
}

// Messages returns a copy of the transcript in send order.
func (s *Session) Messages() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Label returns the speaker prefix used when printing a message.
func Label(m models.ChatMessage) string {
	switch m.Role {
	case models.RoleUser:
		return "我："
	case models.RoleAssistant:
		return "机器人："
	default:
		return fmt.Sprintf("%s：", m.Role)
	}
}

func now() *time.Time {
	t := time.Now()
	return &t
}
