package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/avast/retry-go/v4"

	"github.com/jackzampolin/scribe/internal/chunker"
	"github.com/jackzampolin/scribe/internal/llmjson"
	"github.com/jackzampolin/scribe/internal/providers"
)

// ResolverConfig bounds the resolver's provider usage.
type ResolverConfig struct {
	UploadRetries     int // Retries of the whole upload attempt on transient failure
	JSONRepairRetries int // Repair iterations in the strict-JSON protocol
	ChunkChars        int // Chunk size for the chunked strategy (smaller than translation chunks)
	EarlyChunkHints   int // First N chunks get the title/author hint prompt
	MaxChunkSummaries int // Cap on summarized chunks, bounds cost on huge documents
}

// DefaultResolverConfig returns the stock resolver bounds.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		UploadRetries:     2,
		JSONRepairRetries: 2,
		ChunkChars:        8000,
		EarlyChunkHints:   3,
		MaxChunkSummaries: 500,
	}
}

// Resolver produces a normalized metadata result for one document,
// attempting whole-document upload first and falling back to the chunked
// summarize-then-synthesize strategy.
type Resolver struct {
	provider providers.Provider
	cfg      ResolverConfig
	log      *slog.Logger
}

// NewResolver creates a resolver over the given provider. Bounds left at
// their zero value fall back to the defaults; retry treats zero attempts
// as unlimited, so UploadRetries in particular must never reach it as 0.
func NewResolver(provider providers.Provider, cfg ResolverConfig, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	def := DefaultResolverConfig()
	if cfg.UploadRetries < 1 {
		cfg.UploadRetries = def.UploadRetries
	}
	if cfg.ChunkChars < 1 {
		cfg.ChunkChars = def.ChunkChars
	}
	if cfg.MaxChunkSummaries < 1 {
		cfg.MaxChunkSummaries = def.MaxChunkSummaries
	}
	return &Resolver{provider: provider, cfg: cfg, log: log}
}

// Resolve runs the metadata state machine for one document.
//
// Upload errors (not-supported, mechanical failure, exhausted transients)
// are absorbed by falling back to the chunked strategy. InvalidJSON,
// schema validation, and document-read failures propagate to the caller.
func (r *Resolver) Resolve(ctx context.Context, doc DocumentInput, targetLanguage string) (*Result, error) {
	if doc.FilePath == "" {
		return r.chunkedFallback(ctx, doc, targetLanguage, "no file provided for upload")
	}

	meta, err := r.uploadMetadata(ctx, doc.FilePath)
	if err != nil {
		if reason, ok := uploadFallbackReason(err); ok {
			r.log.Info("upload strategy unavailable, falling back to chunked", "reason", reason)
			return r.chunkedFallback(ctx, doc, targetLanguage, reason)
		}

		var transient *providers.TransientError
		if errors.As(err, &transient) {
			meta, err = r.retryUpload(ctx, doc.FilePath)
			if err != nil {
				if reason, ok := uploadFallbackReason(err); ok {
					return r.chunkedFallback(ctx, doc, targetLanguage, reason)
				}
				if errors.As(err, &transient) {
					r.log.Warn("upload retries exhausted, falling back to chunked", "attempts", r.cfg.UploadRetries)
					return r.chunkedFallback(ctx, doc, targetLanguage, "upload transient failure")
				}
				return nil, err
			}
		} else {
			return nil, err
		}
	}

	typed, err := finishMetadata(meta, targetLanguage)
	if err != nil {
		return nil, err
	}
	return &Result{Metadata: typed, Strategy: StrategyUpload}, nil
}

// retryUpload re-attempts the whole upload call a bounded number of times
// while the failure stays transient.
func (r *Resolver) retryUpload(ctx context.Context, filePath string) (json.RawMessage, error) {
	return retry.DoWithData(
		func() (json.RawMessage, error) {
			return r.uploadMetadata(ctx, filePath)
		},
		retry.Context(ctx),
		retry.Attempts(uint(r.cfg.UploadRetries)),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var transient *providers.TransientError
			return errors.As(err, &transient)
		}),
	)
}

// uploadMetadata performs one whole-document extraction call. The JSON
// schema is pre-declared for providers that support structured outputs;
// repair calls go through plain chat, never a re-upload.
func (r *Resolver) uploadMetadata(ctx context.Context, filePath string) (json.RawMessage, error) {
	system := ExtractionSystemPrompt()
	raw, err := r.provider.ChatTextWithDocument(ctx, system, UploadUserPrompt(), filePath, &providers.RequestOptions{
		JSONSchema: ExtractionSchema,
	})
	if err != nil {
		return nil, err
	}

	obj, parseErr := llmjson.ParseObjectStrict(raw)
	if parseErr == nil {
		return obj, nil
	}
	if extracted := llmjson.ExtractObjectLoose(raw); extracted != "" {
		if obj, err := llmjson.ParseObjectStrict(extracted); err == nil {
			return obj, nil
		}
	}

	// Bad formatting from the upload call: repair with plain chat.
	rewrite := fmt.Sprintf("Rewrite the following as valid JSON only, matching the required schema:\n\n%s", raw)
	return llmjson.RequestJSON(ctx, providers.Chat(r.provider, nil), system, rewrite, r.cfg.JSONRepairRetries)
}

// chunkedFallback runs the summarize-then-synthesize strategy over raw
// text. Requires RawText; a missing text is a hard precondition failure.
func (r *Resolver) chunkedFallback(ctx context.Context, doc DocumentInput, targetLanguage, reason string) (*Result, error) {
	if doc.RawText == "" {
		return nil, &DocumentReadError{Reason: "chunked fallback requires raw text (extract the document first)"}
	}

	chunks, err := chunker.Split(doc.RawText, r.cfg.ChunkChars)
	if err != nil {
		return nil, fmt.Errorf("failed to chunk document: %w", err)
	}
	if len(chunks) > r.cfg.MaxChunkSummaries {
		chunks = chunks[:r.cfg.MaxChunkSummaries]
	}
	r.log.Info("chunked metadata strategy", "chunks", len(chunks), "reason", reason)

	summaries := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		early := i < r.cfg.EarlyChunkHints
		summary, err := r.provider.ChatText(ctx, ChunkSummarySystemPrompt(), ChunkSummaryUserPrompt(chunk, early), nil)
		if err != nil {
			return nil, fmt.Errorf("chunk %d summary failed: %w", i, err)
		}
		summaries = append(summaries, strings.TrimSpace(summary))
	}

	obj, err := llmjson.RequestJSON(ctx,
		providers.Chat(r.provider, nil),
		ExtractionSystemPrompt(),
		SynthesisUserPrompt(summaries),
		r.cfg.JSONRepairRetries,
	)
	if err != nil {
		return nil, err
	}

	typed, err := finishMetadata(obj, targetLanguage)
	if err != nil {
		return nil, err
	}
	return &Result{Metadata: typed, Strategy: StrategyChunked, FallbackReason: reason}, nil
}

// finishMetadata normalizes, validates, and attaches the target language.
func finishMetadata(raw json.RawMessage, targetLanguage string) (BookMetadata, error) {
	meta, err := Decode(raw)
	if err != nil {
		return BookMetadata{}, err
	}
	meta.TargetLanguage = targetLanguage
	return meta, nil
}

// uploadFallbackReason classifies upload errors that trigger the chunked
// fallback rather than propagating.
func uploadFallbackReason(err error) (string, bool) {
	var notSupported *providers.UploadNotSupportedError
	if errors.As(err, &notSupported) {
		return notSupported.Error(), true
	}
	var failed *providers.UploadFailedError
	if errors.As(err, &failed) {
		return failed.Error(), true
	}
	return "", false
}
