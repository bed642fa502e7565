package models

import (
	"encoding/json"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	Role      string     `json:"role"` // "user", "assistant" or "system"
	Content   string     `json:"content"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// ChatRequest is the payload sent to the chat endpoint.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the reply from the AI chat. Error is set when the provider
// answered without usable text.
type ChatResponse struct {
	Reply string          `json:"reply"`
	Raw   json.RawMessage `json:"raw,omitempty"`
	Error *APIError       `json:"error,omitempty"`
}

// LegacyChatResponse is the /api/chat body. Error is a plain display string.
type LegacyChatResponse struct {
	Reply string          `json:"reply"`
	Raw   json.RawMessage `json:"raw,omitempty"`
	Error string          `json:"error,omitempty"`
}

type LegacyErrorResponse struct {
	Error string `json:"error"`
}
