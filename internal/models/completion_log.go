package models

import (
	"time"

	"github.com/google/uuid"
)

// CompletionLogEntry records the outcome of one provider call. It never holds
// prompt or reply text.
type CompletionLogEntry struct {
	ID           uuid.UUID  `json:"id"`
	RequestID    string     `json:"request_id"`
	SessionID    *uuid.UUID `json:"session_id"`
	Model        string     `json:"model"`
	Kind         string     `json:"kind"` // "ok" | "empty" | "error"
	HTTPStatus   int        `json:"http_status"`
	LatencyMS    int64      `json:"latency_ms"`
	ErrorMessage *string    `json:"error_message"`
	CreatedAt    time.Time  `json:"created_at"`
}
