package models

import "github.com/google/uuid"

// WebSocket message types
const (
	WSTypeTyping = "typing"
	WSTypeReply  = "reply"
)

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type TypingEvent struct {
	SessionID uuid.UUID `json:"session_id"`
}

type ReplyEvent struct {
	SessionID uuid.UUID `json:"session_id"`
	Kind      string    `json:"kind"`
	Reply     string    `json:"reply"`
}

// API Error response
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
