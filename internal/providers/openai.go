package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const (
	OpenAIName         = "openai"
	openAIDefaultModel = "gpt-5-nano"
)

// OpenAIConfig holds configuration for the OpenAI client.
type OpenAIConfig struct {
	APIKey     string
	Model      string        // Default model (default: gpt-5-nano)
	BaseURL    string        // Optional (tests)
	Timeout    time.Duration // HTTP timeout (default: 400s, book-sized prompts are slow)
	HTTPClient *http.Client  // Optional (tests)
}

// OpenAIClient implements Provider using the official OpenAI SDK.
// It is the upload-capable variant: whole documents go through the Files
// API and are referenced as file content parts in the chat request.
type OpenAIClient struct {
	model  string
	client openai.Client
}

// NewOpenAIClient creates a new OpenAI client.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing OpenAI API key")
	}
	if cfg.Model == "" {
		cfg.Model = openAIDefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 400 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		// The resolver owns retry policy for upload calls; keep the SDK
		// transport from stacking its own retries on top.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		model:  cfg.Model,
		client: openai.NewClient(opts...),
	}, nil
}

// Name returns the provider identifier.
func (c *OpenAIClient) Name() string { return OpenAIName }

// TestConnection sends a minimal round-trip chat request.
func (c *OpenAIClient) TestConnection(ctx context.Context) error {
	_, err := c.ChatText(ctx,
		"You are a helpful assistant.",
		"Reply with exactly: OK",
		&RequestOptions{MaxTokens: 16},
	)
	return err
}

// ChatText sends a chat completion request and returns the reply text.
func (c *OpenAIClient) ChatText(ctx context.Context, system, user string, opts *RequestOptions) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(system),
		openai.UserMessage(user),
	}
	return c.complete(ctx, messages, opts)
}

// ChatTextWithDocument uploads the file via the Files API and references
// it as a file content part alongside the user prompt.
func (c *OpenAIClient) ChatTextWithDocument(ctx context.Context, system, user, filePath string, opts *RequestOptions) (string, error) {
	fileID, err := c.uploadUserData(ctx, filePath)
	if err != nil {
		return "", err
	}

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(system),
		openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
			openai.FileContentPart(openai.ChatCompletionContentPartFileFileParam{
				FileID: openai.String(fileID),
			}),
			openai.TextContentPart(user),
		}),
	}

	text, err := c.complete(ctx, messages, opts)
	if err != nil {
		if looksLikeFileInputRejection(err) {
			return "", &UploadNotSupportedError{Reason: fmt.Sprintf("file input rejected by model/API: %v", err)}
		}
		return "", err
	}
	if text == "" {
		return "", &UploadFailedError{Reason: "empty reply after file input"}
	}
	return text, nil
}

func (c *OpenAIClient) complete(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, opts *RequestOptions) (string, error) {
	model := c.model
	var reqOpts []option.RequestOption
	params := openai.ChatCompletionNewParams{
		Messages: messages,
	}
	if opts != nil {
		if opts.Model != "" {
			model = opts.Model
		}
		if opts.MaxTokens > 0 {
			params.MaxCompletionTokens = openai.Int(int64(opts.MaxTokens))
		}
		if opts.Temperature > 0 {
			params.Temperature = openai.Float(opts.Temperature)
		}
		if opts.Timeout > 0 {
			reqOpts = append(reqOpts, option.WithRequestTimeout(opts.Timeout))
		}
		if opts.JSONSchema != nil {
			params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
					JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
						Name:   "structured_output",
						Strict: openai.Bool(true),
						Schema: opts.JSONSchema,
					},
				},
			}
		}
	}
	params.Model = openai.ChatModel(model)

	completion, err := c.client.Chat.Completions.New(ctx, params, reqOpts...)
	if err != nil {
		// Schema pre-declaration is best-effort: retry once without it if
		// the model tier rejects structured outputs.
		if opts != nil && opts.JSONSchema != nil && looksLikeSchemaRejection(err) {
			stripped := *opts
			stripped.JSONSchema = nil
			return c.complete(ctx, messages, &stripped)
		}
		return "", classifyOpenAIError(err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

// uploadUserData uploads a file with purpose=user_data and returns its ID.
func (c *OpenAIClient) uploadUserData(ctx context.Context, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", &UploadFailedError{Reason: fmt.Sprintf("file not found: %s", filepath.Base(filePath)), Err: err}
	}
	defer f.Close()

	file, err := c.client.Files.New(ctx, openai.FileNewParams{
		File:    f,
		Purpose: openai.FilePurposeUserData,
	})
	if err != nil {
		var apierr *openai.Error
		if errors.As(err, &apierr) {
			switch {
			case isTransientStatus(apierr.StatusCode):
				return "", &TransientError{Reason: fmt.Sprintf("transient upload error %d", apierr.StatusCode), Err: err}
			case apierr.StatusCode == http.StatusNotFound || apierr.StatusCode == http.StatusMethodNotAllowed:
				return "", &UploadNotSupportedError{Reason: fmt.Sprintf("files endpoint not available: HTTP %d", apierr.StatusCode)}
			default:
				return "", &UploadFailedError{Reason: fmt.Sprintf("upload rejected: HTTP %d", apierr.StatusCode), Err: err}
			}
		}
		return "", &TransientError{Reason: "network error uploading file", Err: err}
	}
	if file.ID == "" {
		return "", &UploadFailedError{Reason: "upload succeeded but no file id returned"}
	}
	return file.ID, nil
}

// classifyOpenAIError maps SDK errors onto the pipeline's taxonomy.
func classifyOpenAIError(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		if isTransientStatus(apierr.StatusCode) {
			return &TransientError{Reason: fmt.Sprintf("HTTP %d", apierr.StatusCode), Err: err}
		}
		return fmt.Errorf("openai request failed (status %d): %w", apierr.StatusCode, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &TransientError{Reason: "network error", Err: err}
}

func isTransientStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func looksLikeFileInputRejection(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, needle := range []string{"input_file", "file_id", "file content", "unsupported", "not allowed"} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}

func looksLikeSchemaRejection(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, needle := range []string{"json_schema", "response_format", "structured output"} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}

// Verify interface
var _ Provider = (*OpenAIClient)(nil)
