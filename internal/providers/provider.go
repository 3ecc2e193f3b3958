// Package providers contains LLM provider clients and the error taxonomy
// the pipeline reacts to. The pipeline depends only on the Provider
// interface; the concrete client is selected at configuration time.
package providers

import (
	"context"
	"time"
)

// Provider is the chat capability the metadata resolver and translation
// pipeline consume.
type Provider interface {
	// Name returns the provider identifier (e.g. "openai", "ollama").
	Name() string

	// TestConnection performs a cheap round-trip to verify the provider
	// is reachable and the credentials work.
	TestConnection(ctx context.Context) error

	// ChatText sends a system + user prompt and returns the raw reply text.
	ChatText(ctx context.Context, system, user string, opts *RequestOptions) (string, error)

	// ChatTextWithDocument sends a prompt along with a whole source file.
	// Providers that cannot ingest files return *UploadNotSupportedError;
	// mechanical upload failures return *UploadFailedError; retryable
	// network/server conditions return *TransientError.
	ChatTextWithDocument(ctx context.Context, system, user, filePath string, opts *RequestOptions) (string, error)
}

// RequestOptions carries per-call generation parameters. A nil options
// pointer means provider defaults.
type RequestOptions struct {
	Model       string        // Override the client default model
	MaxTokens   int           // Max output tokens (0 = provider default)
	Temperature float64       // Sampling temperature
	Timeout     time.Duration // Per-call timeout (0 = client default)
	RequestID   string        // Correlates logs across repair/retry calls

	// JSONSchema pre-declares a structured-output schema for providers
	// that support it. Providers that reject the declaration retry the
	// same call without it.
	JSONSchema map[string]any
}

// ChatFunc adapts a plain function to the text-chat part of the Provider
// interface. The strict-JSON protocol operates on this so repair calls can
// be issued without dragging the full provider surface along.
type ChatFunc func(ctx context.Context, system, user string) (string, error)

// Chat returns a ChatFunc bound to a provider with fixed options.
func Chat(p Provider, opts *RequestOptions) ChatFunc {
	return func(ctx context.Context, system, user string) (string, error) {
		return p.ChatText(ctx, system, user, opts)
	}
}
