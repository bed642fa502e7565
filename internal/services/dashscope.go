package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// User-displayable messages for the non-ok completion kinds.
const (
	MsgEmptyMessage  = "消息不能为空"
	MsgNoReply       = "通义API无回复"
	MsgProviderError = "服务器错误"
)

const maxResponseBytes = 4 << 20

var ErrEmptyPrompt = errors.New("prompt is empty")

type CompletionKind string

const (
	CompletionOK    CompletionKind = "ok"
	CompletionEmpty CompletionKind = "empty"
	CompletionError CompletionKind = "error"
)

// CompletionResult is the tagged outcome of one provider call. Text is
// meaningful only for CompletionOK; Message only for the other two kinds.
type CompletionResult struct {
	Kind       CompletionKind
	Text       string
	Raw        json.RawMessage
	Message    string
	StatusCode int
	Err        error
}

type generationRequest struct {
	Model string          `json:"model"`
	Input generationInput `json:"input"`
}

type generationInput struct {
	Prompt string `json:"prompt"`
}

// generationResponse is decoded field by field: a 2xx body whose output has
// an unexpected shape counts as an empty reply, not a provider failure.
type generationResponse struct {
	Output json.RawMessage `json:"output"`
}

type generationOutput struct {
	Text json.RawMessage `json:"text"`
}

// outputText returns output.text when the body carries it as a non-empty
// string.
func outputText(raw []byte) (string, bool) {
	var envelope generationResponse
	if err := json.Unmarshal(raw, &envelope); err != nil || len(envelope.Output) == 0 {
		return "", false
	}
	var output generationOutput
	if err := json.Unmarshal(envelope.Output, &output); err != nil || len(output.Text) == 0 {
		return "", false
	}
	var text string
	if err := json.Unmarshal(output.Text, &text); err != nil {
		return "", false
	}
	return text, text != ""
}

type DashScopeClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

func NewDashScopeClient(baseURL, apiKey, model string, timeout time.Duration) *DashScopeClient {
	return &DashScopeClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
	}
}

func (c *DashScopeClient) Model() string {
	return c.model
}

// Complete issues exactly one generation call. It never returns a Go error:
// every failure is folded into the result so callers can display it.
func (c *DashScopeClient) Complete(ctx context.Context, prompt string) CompletionResult {
	if strings.TrimSpace(prompt) == "" {
		return CompletionResult{Kind: CompletionError, Message: MsgEmptyMessage, Err: ErrEmptyPrompt}
	}

	body, err := json.Marshal(generationRequest{
		Model: c.model,
		Input: generationInput{Prompt: prompt},
	})
	if err != nil {
		return failed(0, nil, fmt.Errorf("failed to encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return failed(0, nil, fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return failed(0, nil, fmt.Errorf("DashScope request failed: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return failed(resp.StatusCode, nil, fmt.Errorf("failed to read DashScope response: %w", err))
	}

	if !json.Valid(raw) {
		return failed(resp.StatusCode, nil, fmt.Errorf("DashScope returned non-JSON body (status %d)", resp.StatusCode))
	}
	log.Printf("DashScope response (status %d): %s", resp.StatusCode, compactJSON(raw))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return failed(resp.StatusCode, raw, fmt.Errorf("DashScope API error: status %d", resp.StatusCode))
	}

	text, ok := outputText(raw)
	if !ok {
		return CompletionResult{
			Kind:       CompletionEmpty,
			Raw:        raw,
			Message:    MsgNoReply,
			StatusCode: resp.StatusCode,
		}
	}

	return CompletionResult{
		Kind:       CompletionOK,
		Text:       text,
		Raw:        raw,
		StatusCode: resp.StatusCode,
	}
}

func failed(status int, raw json.RawMessage, err error) CompletionResult {
	log.Printf("DashScope completion failed: %v", err)
	return CompletionResult{
		Kind:       CompletionError,
		Raw:        raw,
		Message:    MsgProviderError,
		StatusCode: status,
		Err:        err,
	}
}

func compactJSON(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
