package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	OllamaName           = "ollama"
	OllamaDefaultBaseURL = "http://localhost:11434"
)

// OllamaConfig holds configuration for the local Ollama client.
type OllamaConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration // default: 120s
}

// OllamaClient implements Provider against an OpenAI-compatible Ollama
// server. It is the chat-only variant: document upload always reports
// UploadNotSupported so callers take the chunked path.
type OllamaClient struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaClient creates a new Ollama client.
func NewOllamaClient(cfg OllamaConfig) *OllamaClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = OllamaDefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &OllamaClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// Name returns the provider identifier.
func (c *OllamaClient) Name() string { return OllamaName }

// TestConnection sends a minimal round-trip chat request.
func (c *OllamaClient) TestConnection(ctx context.Context) error {
	_, err := c.ChatText(ctx,
		"You are a helpful assistant.",
		"Reply with exactly: OK",
		&RequestOptions{MaxTokens: 8},
	)
	return err
}

// ChatText sends a chat completion request and returns the reply text.
func (c *OllamaClient) ChatText(ctx context.Context, system, user string, opts *RequestOptions) (string, error) {
	model := c.model
	req := ollamaChatRequest{
		Messages: []ollamaMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	if opts != nil {
		if opts.Model != "" {
			model = opts.Model
		}
		if opts.MaxTokens > 0 {
			req.MaxTokens = opts.MaxTokens
		}
		if opts.Temperature > 0 {
			req.Temperature = opts.Temperature
		}
	}
	req.Model = model

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &TransientError{Reason: fmt.Sprintf("network error calling %s", url), Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransientError{Reason: "failed to read response", Err: err}
	}

	if isTransientStatus(resp.StatusCode) {
		return "", &TransientError{Reason: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncate(string(respBody), 500))}
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("ollama request failed (status %d): %s", resp.StatusCode, truncate(string(respBody), 1200))
	}

	var parsed ollamaChatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// ChatTextWithDocument always reports UploadNotSupported; the local
// provider has no document ingestion path.
func (c *OllamaClient) ChatTextWithDocument(ctx context.Context, system, user, filePath string, opts *RequestOptions) (string, error) {
	return "", &UploadNotSupportedError{Reason: "local provider does not support document upload"}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// OpenAI-compatible wire types

type ollamaChatRequest struct {
	Model       string          `json:"model"`
	Messages    []ollamaMessage `json:"messages"`
	Temperature float64         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Verify interface
var _ Provider = (*OllamaClient)(nil)
