package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/scribe/internal/config"
	"github.com/jackzampolin/scribe/internal/home"
	"github.com/jackzampolin/scribe/internal/metadata"
	"github.com/jackzampolin/scribe/internal/providers"
	"github.com/jackzampolin/scribe/internal/state"
	"github.com/jackzampolin/scribe/internal/translate"
)

var (
	translateTargetLanguage string
	translateOutput         string
	translateResume         bool
)

var translateCmd = &cobra.Command{
	Use:   "translate <file>",
	Short: "Translate a document chunk by chunk with checkpointing",
	Long: `Translate a document into the target language.

Metadata for the document is resolved first (reusing the cache when one
exists for the same content). The document is then split at natural
boundaries and translated chunk by chunk; a checkpoint is written after
every chunk, so an interrupted run restarted with --resume continues
where it stopped without repeating completed chunks.

When --output is omitted the file is written to the home outputs
directory as "{title} ({language}).txt".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()

		h, err := loadHome()
		if err != nil {
			return err
		}
		cfg, err := loadConfig(h)
		if err != nil {
			return err
		}
		store, err := openStore(h)
		if err != nil {
			return err
		}
		provider, err := buildProvider(cfg)
		if err != nil {
			return err
		}

		doc, err := readDocument(args[0])
		if err != nil {
			return err
		}
		docHash := state.DocumentHash(doc.RawText)

		targetLanguage := translateTargetLanguage
		if targetLanguage == "" {
			targetLanguage = cfg.Defaults.TargetLanguage
		}

		var resume *state.TranslationState
		if translateResume {
			path, st, err := store.FindTranslationState(docHash)
			if err != nil {
				return err
			}
			if st == nil {
				log.Warn("no checkpoint found for this document, starting fresh")
			} else {
				log.Info("found checkpoint", "path", path, "chunk", st.CurrentChunk, "total", st.ChunksTotal)
				resume = st
			}
		}

		meta, err := ensureMetadata(cmd.Context(), store, provider, cfg, doc, docHash, targetLanguage, log)
		if err != nil {
			return err
		}

		outputPath := translateOutput
		if outputPath == "" && (resume == nil || resume.OutputPath == "") {
			outputPath = suggestOutputPath(h, meta, targetLanguage, docHash)
			log.Info("no output path given", "using", outputPath)
		}

		pipeline := translate.NewPipeline(provider, store, pipelineConfig(cfg), log)
		return pipeline.Run(cmd.Context(), translate.Request{
			Document:       doc,
			Metadata:       meta,
			TargetLanguage: targetLanguage,
			OutputPath:     outputPath,
			Resume:         resume,
			Progress: func(done, total int) {
				log.Info("progress", "chunk", done, "total", total)
			},
		})
	},
}

func init() {
	translateCmd.Flags().StringVar(&translateTargetLanguage, "target-language", "", "language to translate into")
	translateCmd.Flags().StringVar(&translateOutput, "output", "", "output file path")
	translateCmd.Flags().BoolVar(&translateResume, "resume", false, "resume from the stored checkpoint for this document")
}

// ensureMetadata returns cached metadata for the document hash, resolving
// and caching it when absent.
func ensureMetadata(ctx context.Context, store *state.Store, provider providers.Provider, cfg *config.Config, doc metadata.DocumentInput, docHash, targetLanguage string, log *slog.Logger) (*metadata.BookMetadata, error) {
	if path, err := store.FindMetadataCache(docHash); err == nil && path != "" {
		if rec, err := store.LoadMetadataCache(path); err == nil {
			log.Info("using cached metadata", "path", path)
			return &rec.Metadata, nil
		}
	}

	resolver := metadata.NewResolver(provider, resolverConfig(cfg), log)
	result, err := resolver.Resolve(ctx, doc, targetLanguage)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve metadata: %w", err)
	}
	log.Info("metadata resolved", "strategy", result.Strategy, "fallback_reason", result.FallbackReason)

	if _, err := store.SaveMetadataCache(docHash, result.Metadata, targetLanguage, result.Metadata.Title); err != nil {
		return nil, err
	}
	return &result.Metadata, nil
}

// suggestOutputPath names the output "{title} ({language}).txt" in the
// home outputs directory, falling back to the hash prefix when the title
// is unknown.
func suggestOutputPath(h *home.Dir, meta *metadata.BookMetadata, targetLanguage, docHash string) string {
	base := meta.Title
	if !metadata.HasValue(base) {
		base = docHash[:16]
	}
	name := state.Slugify(fmt.Sprintf("%s (%s)", base, targetLanguage)) + ".txt"
	return filepath.Join(h.OutputsPath(), name)
}

// resolverConfig maps configuration onto the metadata resolver bounds.
func resolverConfig(cfg *config.Config) metadata.ResolverConfig {
	rc := metadata.DefaultResolverConfig()
	if cfg.Metadata.UploadRetries > 0 {
		rc.UploadRetries = cfg.Metadata.UploadRetries
	}
	if cfg.Metadata.JSONRepairRetries > 0 {
		rc.JSONRepairRetries = cfg.Metadata.JSONRepairRetries
	}
	if cfg.Metadata.ChunkChars > 0 {
		rc.ChunkChars = cfg.Metadata.ChunkChars
	}
	if cfg.Metadata.EarlyChunkHints > 0 {
		rc.EarlyChunkHints = cfg.Metadata.EarlyChunkHints
	}
	if cfg.Metadata.MaxChunkSummaries > 0 {
		rc.MaxChunkSummaries = cfg.Metadata.MaxChunkSummaries
	}
	return rc
}

// pipelineConfig maps configuration onto the translation pipeline bounds.
func pipelineConfig(cfg *config.Config) translate.Config {
	pc := translate.DefaultConfig()
	if cfg.Translation.ChunkChars > 0 {
		pc.ChunkChars = cfg.Translation.ChunkChars
	}
	if cfg.Translation.JSONRepairRetries > 0 {
		pc.JSONRepairRetries = cfg.Translation.JSONRepairRetries
	}
	return pc
}
