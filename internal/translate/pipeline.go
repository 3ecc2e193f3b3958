// Package translate drives one document end-to-end through chunked
// translation, resumable at chunk granularity.
package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/jackzampolin/scribe/internal/chunker"
	"github.com/jackzampolin/scribe/internal/llmjson"
	"github.com/jackzampolin/scribe/internal/metadata"
	"github.com/jackzampolin/scribe/internal/providers"
	"github.com/jackzampolin/scribe/internal/state"
)

// Config bounds the pipeline's chunking and repair behavior.
type Config struct {
	ChunkChars        int // Translation chunk size (larger than metadata chunks)
	JSONRepairRetries int
}

// DefaultConfig returns the stock pipeline bounds.
func DefaultConfig() Config {
	return Config{
		ChunkChars:        30000,
		JSONRepairRetries: 2,
	}
}

// Request describes one translation job.
type Request struct {
	Document       metadata.DocumentInput
	Metadata       *metadata.BookMetadata  // In-memory metadata; a disk cache entry for the same hash wins
	TargetLanguage string
	OutputPath     string
	Resume         *state.TranslationState // Prior checkpoint, adopted when its hash matches

	// Progress, when set, is called after each completed chunk with the
	// next chunk index and the total.
	Progress func(done, total int)
}

// Pipeline translates documents chunk-by-chunk, checkpointing after every
// chunk so an interrupted job resumes without repeating work. One pipeline
// instance runs per document hash at a time; callers own that exclusion.
type Pipeline struct {
	provider providers.Provider
	store    *state.Store
	cfg      Config
	gate     *Gate
	log      *slog.Logger
}

// NewPipeline creates a pipeline over the given provider and state store.
func NewPipeline(provider providers.Provider, store *state.Store, cfg Config, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		provider: provider,
		store:    store,
		cfg:      cfg,
		gate:     NewGate(),
		log:      log,
	}
}

// Gate returns the pipeline's pause gate. Pausing takes effect at the
// next chunk boundary; it never interrupts an in-flight chunk.
func (p *Pipeline) Gate() *Gate { return p.gate }

// chunkReply is the contract for one translated chunk.
type chunkReply struct {
	Chapter     string `json:"chapter"`
	Translation string `json:"translation"`
}

// Run executes one translation job. Any mid-chunk failure aborts the job
// and leaves the last successful checkpoint intact; re-running the same
// request resumes from it. On normal completion the checkpoint is deleted.
func (p *Pipeline) Run(ctx context.Context, req Request) error {
	if req.Document.RawText == "" {
		return &metadata.DocumentReadError{Reason: "translation requires raw text (extract the document first)"}
	}
	if req.TargetLanguage == "" {
		return fmt.Errorf("target language is required")
	}

	docHash := state.DocumentHash(req.Document.RawText)
	jobID := uuid.New().String()
	log := p.log.With("job", jobID, "hash", docHash[:16])

	// Resume detection: adopt the prior checkpoint only when it belongs
	// to this exact text.
	resume := req.Resume
	if resume != nil && resume.DocumentHash != docHash {
		resume = nil
	}

	// The checkpoint's chunk size wins over configuration: the cursor
	// indexes the split it was written against, so re-splitting with a
	// different size would misalign every remaining chunk.
	chunkChars := p.cfg.ChunkChars
	if resume != nil && resume.ChunkSize > 0 && resume.ChunkSize != chunkChars {
		log.Info("using checkpoint chunk size", "checkpoint", resume.ChunkSize, "configured", chunkChars)
		chunkChars = resume.ChunkSize
	}

	chunks, err := chunker.Split(req.Document.RawText, chunkChars)
	if err != nil {
		return fmt.Errorf("failed to chunk document: %w", err)
	}
	if len(chunks) == 0 {
		return &metadata.DocumentReadError{Reason: "document contains no text"}
	}

	meta := p.resolveMetadata(docHash, req.Metadata, log)

	start := 0
	currentChapter := firstChapter(meta.Chapters)
	tail := ""
	outputPath := req.OutputPath
	metadataPath := ""
	if resume != nil {
		start = resume.CurrentChunk
		currentChapter = resume.CurrentChapter
		tail = resume.TranslationTail
		metadataPath = resume.MetadataPath
		if resume.OutputPath != "" {
			outputPath = resume.OutputPath
		}
		log.Info("resuming translation", "chunk", start, "total", len(chunks), "chapter", currentChapter)
	}
	if outputPath == "" {
		return fmt.Errorf("output path is required")
	}
	if start > len(chunks) {
		return fmt.Errorf("checkpoint chunk %d is past the end of the document (%d chunks)", start, len(chunks))
	}

	sink, err := OpenSink(outputPath)
	if err != nil {
		return err
	}
	defer sink.Close()

	if err := sink.WriteHeader(meta, req.TargetLanguage); err != nil {
		return err
	}

	checkpoint := &state.TranslationState{
		DocumentHash:    docHash,
		OutputPath:      outputPath,
		CurrentChunk:    start,
		ChunksTotal:     len(chunks),
		CurrentChapter:  currentChapter,
		TranslationTail: tail,
		MetadataPath:    metadataPath,
		TargetLanguage:  req.TargetLanguage,
		ChunkSize:       chunkChars,
	}

	// Preflight checkpoint: a crash before the first chunk completes must
	// still resume from the correct index.
	if _, err := p.store.SaveTranslationState(meta.Title, checkpoint); err != nil {
		return err
	}

	for i := start; i < len(chunks); i++ {
		// Cooperative pause, checked only between chunks.
		if err := p.gate.Wait(ctx); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		reply, err := p.translateChunk(ctx, chunks[i], meta, req.TargetLanguage, currentChapter, tail)
		if err != nil {
			return fmt.Errorf("chunk %d/%d failed: %w", i+1, len(chunks), err)
		}

		if strings.TrimSpace(reply.Translation) == "" {
			return fmt.Errorf("chunk %d/%d failed: model returned empty translation", i+1, len(chunks))
		}
		// Monotonic chapter carry: once set it persists until overwritten.
		if ch := strings.TrimSpace(reply.Chapter); ch != "" {
			currentChapter = ch
		}

		// Output before progress: the checkpoint must never point past
		// data that is not durably on disk.
		if err := sink.Append(reply.Translation); err != nil {
			return err
		}

		tail = lastChars(reply.Translation, TailChars)
		checkpoint.CurrentChunk = i + 1
		checkpoint.CurrentChapter = currentChapter
		checkpoint.TranslationTail = tail
		if _, err := p.store.SaveTranslationState(meta.Title, checkpoint); err != nil {
			return err
		}

		log.Debug("chunk translated", "chunk", i+1, "total", len(chunks), "chapter", currentChapter)
		if req.Progress != nil {
			req.Progress(i+1, len(chunks))
		}
	}

	// Success removes the resumability artifact.
	if err := p.store.DeleteTranslationState(docHash); err != nil {
		return err
	}
	log.Info("translation complete", "chunks", len(chunks), "output", outputPath)
	return nil
}

// translateChunk runs one chunk through the strict-JSON protocol and
// decodes the chapter/translation contract.
func (p *Pipeline) translateChunk(ctx context.Context, chunk string, meta metadata.BookMetadata, targetLanguage, currentChapter, tail string) (*chunkReply, error) {
	opts := &providers.RequestOptions{RequestID: uuid.New().String()}
	obj, err := llmjson.RequestJSON(ctx,
		providers.Chat(p.provider, opts),
		systemPrompt(tail),
		userPrompt(meta, targetLanguage, currentChapter, chunk),
		p.cfg.JSONRepairRetries,
	)
	if err != nil {
		return nil, err
	}

	var reply chunkReply
	if err := json.Unmarshal(obj, &reply); err != nil {
		return nil, fmt.Errorf("reply does not match chapter/translation contract: %w", err)
	}
	return &reply, nil
}

// resolveMetadata prefers the on-disk cache entry for this hash over the
// caller's in-memory metadata; disk is the source of truth once cached.
func (p *Pipeline) resolveMetadata(docHash string, passed *metadata.BookMetadata, log *slog.Logger) metadata.BookMetadata {
	if path, err := p.store.FindMetadataCache(docHash); err == nil && path != "" {
		if rec, err := p.store.LoadMetadataCache(path); err == nil {
			log.Info("using cached metadata", "path", path)
			return rec.Metadata
		}
	}
	if passed != nil {
		return *passed
	}
	return metadata.BookMetadata{
		Authors:  metadata.NotProvided,
		Title:    metadata.NotProvided,
		Language: metadata.NotProvided,
		Summary:  metadata.NotProvided,
	}
}

// lastChars returns the final at-most-n characters of s.
func lastChars(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
