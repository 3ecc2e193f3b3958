package providers

import (
	"context"
	"fmt"
	"sync"
)

const MockName = "mock"

// MockProvider is a scripted Provider for tests. Chat and document calls
// consume behaviors in order; a behavior is either a reply string or an
// error to return.
type MockProvider struct {
	mu sync.Mutex

	// ChatReplies are consumed by ChatText in order. When exhausted,
	// ChatText returns DefaultReply.
	ChatReplies []any // string or error

	// DocReplies are consumed by ChatTextWithDocument in order. When
	// exhausted, the call reports UploadNotSupported.
	DocReplies []any // string or error

	// DefaultReply is returned by ChatText once ChatReplies is exhausted.
	DefaultReply string

	// ConnectionErr is returned by TestConnection when set.
	ConnectionErr error

	// Recorded calls for assertions.
	ChatCalls []RecordedCall
	DocCalls  []RecordedCall
}

// RecordedCall captures the prompts of one provider call.
type RecordedCall struct {
	System   string
	User     string
	FilePath string
}

// NewMockProvider creates a mock provider with no scripted behaviors.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// Name returns the provider identifier.
func (m *MockProvider) Name() string { return MockName }

// TestConnection returns the configured connection error, if any.
func (m *MockProvider) TestConnection(ctx context.Context) error {
	return m.ConnectionErr
}

// ChatText consumes the next scripted chat behavior.
func (m *MockProvider) ChatText(ctx context.Context, system, user string, opts *RequestOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChatCalls = append(m.ChatCalls, RecordedCall{System: system, User: user})

	if len(m.ChatReplies) == 0 {
		return m.DefaultReply, nil
	}
	next := m.ChatReplies[0]
	m.ChatReplies = m.ChatReplies[1:]

	switch v := next.(type) {
	case string:
		return v, nil
	case error:
		return "", v
	default:
		return "", fmt.Errorf("mock: unsupported chat behavior %T", next)
	}
}

// ChatTextWithDocument consumes the next scripted document behavior.
func (m *MockProvider) ChatTextWithDocument(ctx context.Context, system, user, filePath string, opts *RequestOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.DocCalls = append(m.DocCalls, RecordedCall{System: system, User: user, FilePath: filePath})

	if len(m.DocReplies) == 0 {
		return "", &UploadNotSupportedError{Reason: "no scripted upload result"}
	}
	next := m.DocReplies[0]
	m.DocReplies = m.DocReplies[1:]

	switch v := next.(type) {
	case string:
		return v, nil
	case error:
		return "", v
	default:
		return "", fmt.Errorf("mock: unsupported document behavior %T", next)
	}
}

// ChatCallCount returns the number of plain chat calls recorded.
func (m *MockProvider) ChatCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ChatCalls)
}

// DocCallCount returns the number of document chat calls recorded.
func (m *MockProvider) DocCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.DocCalls)
}

// Verify interface
var _ Provider = (*MockProvider)(nil)
