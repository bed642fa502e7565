package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"kidchat-backend/internal/middleware"
	"kidchat-backend/internal/models"
	"kidchat-backend/internal/services"
)

// Completer is the provider call behind a chat send.
type Completer interface {
	Complete(ctx context.Context, prompt string) services.CompletionResult
	Model() string
}

type sessionPublisher interface {
	Publish(ctx context.Context, sessionID uuid.UUID, msg models.WSMessage)
}

// CompletionLogStore keeps one diagnostics row per provider call.
type CompletionLogStore interface {
	Create(ctx context.Context, e *models.CompletionLogEntry) error
	ListRecent(ctx context.Context, limit int) ([]*models.CompletionLogEntry, error)
}

type ChatOptions struct {
	UsePromptTemplate bool
	FilterReply       bool
}

type ChatHandler struct {
	completer Completer
	guard     services.SessionGuard
	hub       sessionPublisher
	logRepo   CompletionLogStore
	opts      ChatOptions
}

// NewChatHandler wires the chat boundary. logRepo may be nil, which turns
// the diagnostics log off.
func NewChatHandler(
	completer Completer,
	guard services.SessionGuard,
	hub sessionPublisher,
	logRepo CompletionLogStore,
	opts ChatOptions,
) *ChatHandler {
	return &ChatHandler{
		completer: completer,
		guard:     guard,
		hub:       hub,
		logRepo:   logRepo,
		opts:      opts,
	}
}

// rejection is a request turned away before the provider is called.
// display is the user-facing text the legacy route puts in its error string.
type rejection struct {
	status  int
	code    string
	message string
	display string
}

var (
	rejectInvalidBody = rejection{http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", services.MsgEmptyMessage}
	rejectNoMessage   = rejection{http.StatusBadRequest, "VALIDATION_ERROR", "Message is required", services.MsgEmptyMessage}
	rejectBusy        = rejection{http.StatusConflict, "SEND_IN_PROGRESS", "Please wait for the current answer", "请等一下，正在回答上一个问题"}
	rejectUnavailable = rejection{http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Please try again later", services.MsgProviderError}
)

// chatResponder renders the outcome of a send for one route's wire format.
type chatResponder interface {
	reject(w http.ResponseWriter, r *http.Request, rej rejection)
	complete(w http.ResponseWriter, r *http.Request, result services.CompletionResult)
}

// Send serves /api/v1/chat: errors use the ErrorResponse envelope.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, envelopeResponder{})
}

// SendLegacy serves /api/chat for older front-ends, which read "error" as a
// plain string.
func (h *ChatHandler) SendLegacy(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, legacyResponder{})
}

func (h *ChatHandler) send(w http.ResponseWriter, r *http.Request, out chatResponder) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		out.reject(w, r, rejectInvalidBody)
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		out.reject(w, r, rejectNoMessage)
		return
	}

	sessionID, hasSession := middleware.GetSessionID(r.Context())
	if hasSession {
		release, err := h.guard.Acquire(r.Context(), sessionID)
		if errors.Is(err, services.ErrSendInProgress) {
			out.reject(w, r, rejectBusy)
			return
		}
		if err != nil {
			log.Printf("Session guard unavailable: %v", err)
			out.reject(w, r, rejectUnavailable)
			return
		}
		defer release()

		h.hub.Publish(r.Context(), sessionID, models.WSMessage{
			Type:    models.WSTypeTyping,
			Payload: models.TypingEvent{SessionID: sessionID},
		})
	}

	prompt := req.Message
	if h.opts.UsePromptTemplate {
		prompt = services.DefaultPromptRequest(req.Message).Build()
	}

	start := time.Now()
	result := h.completer.Complete(r.Context(), prompt)
	latency := time.Since(start)

	if result.Kind == services.CompletionOK && h.opts.FilterReply {
		result.Text = services.FilterReply(result.Text)
		if result.Text == "" {
			result.Kind = services.CompletionEmpty
			result.Message = services.MsgNoReply
		}
	}

	h.recordCompletion(r, sessionID, hasSession, result, latency)

	if hasSession {
		h.hub.Publish(r.Context(), sessionID, models.WSMessage{
			Type: models.WSTypeReply,
			Payload: models.ReplyEvent{
				SessionID: sessionID,
				Kind:      string(result.Kind),
				Reply:     displayText(result),
			},
		})
	}

	out.complete(w, r, result)
}

type envelopeResponder struct{}

func (envelopeResponder) reject(w http.ResponseWriter, r *http.Request, rej rejection) {
	writeJSON(w, rej.status, errorResp(rej.code, rej.message, r))
}

func (envelopeResponder) complete(w http.ResponseWriter, r *http.Request, result services.CompletionResult) {
	switch result.Kind {
	case services.CompletionOK:
		writeJSON(w, http.StatusOK, models.ChatResponse{Reply: result.Text, Raw: result.Raw})
	case services.CompletionEmpty:
		apiErr := errorResp("PROVIDER_EMPTY_REPLY", result.Message, r).Error
		writeJSON(w, http.StatusOK, models.ChatResponse{Reply: "", Raw: result.Raw, Error: &apiErr})
	default:
		writeJSON(w, http.StatusBadGateway, errorResp("PROVIDER_ERROR", result.Message, r))
	}
}

type legacyResponder struct{}

func (legacyResponder) reject(w http.ResponseWriter, r *http.Request, rej rejection) {
	writeJSON(w, rej.status, models.LegacyErrorResponse{Error: rej.display})
}

func (legacyResponder) complete(w http.ResponseWriter, r *http.Request, result services.CompletionResult) {
	switch result.Kind {
	case services.CompletionOK:
		writeJSON(w, http.StatusOK, models.LegacyChatResponse{Reply: result.Text, Raw: result.Raw})
	case services.CompletionEmpty:
		writeJSON(w, http.StatusOK, models.LegacyChatResponse{Reply: "", Raw: result.Raw, Error: result.Message})
	default:
		writeJSON(w, http.StatusInternalServerError, models.LegacyErrorResponse{Error: result.Message})
	}
}

func (h *ChatHandler) recordCompletion(r *http.Request, sessionID uuid.UUID, hasSession bool, result services.CompletionResult, latency time.Duration) {
	if h.logRepo == nil {
		return
	}

	entry := &models.CompletionLogEntry{
		RequestID:  r.Header.Get(middleware.RequestIDHeader),
		Model:      h.completer.Model(),
		Kind:       string(result.Kind),
		HTTPStatus: result.StatusCode,
		LatencyMS:  latency.Milliseconds(),
	}
	if hasSession {
		entry.SessionID = &sessionID
	}
	if result.Err != nil {
		msg := result.Err.Error()
		entry.ErrorMessage = &msg
	}

	// The client may have gone away; the row is still worth keeping.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.logRepo.Create(ctx, entry); err != nil {
		log.Printf("Failed to record completion: %v", err)
	}
}

func displayText(result services.CompletionResult) string {
	if result.Kind == services.CompletionOK {
		return result.Text
	}
	return result.Message
}

// Shared helpers

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get(middleware.RequestIDHeader),
		},
	}
}
