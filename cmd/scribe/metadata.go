package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jackzampolin/scribe/internal/metadata"
	"github.com/jackzampolin/scribe/internal/reader"
	"github.com/jackzampolin/scribe/internal/state"
)

var (
	metadataTargetLanguage string
	metadataForce          bool
)

var metadataCmd = &cobra.Command{
	Use:   "metadata <file|->",
	Short: "Extract book metadata and cache it by document hash",
	Long: `Extract book metadata (author(s), title, language, summary, chapter
summaries) from a document.

The provider is asked to process the whole uploaded document first; when
upload is unsupported or fails, the document is summarized chunk by chunk
and the summaries are synthesized into one metadata object.

A cached result for the same document content is reused unless --force is
given. Pass "-" to read the document text from stdin (stdin always takes
the chunked path).`,
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

		doc, err := readDocument(args[0])
		if err != nil {
			return err
		}
		docHash := state.DocumentHash(doc.RawText)

		targetLanguage := metadataTargetLanguage
		if targetLanguage == "" {
			targetLanguage = cfg.Defaults.TargetLanguage
		}

		if !metadataForce {
			if path, err := store.FindMetadataCache(docHash); err == nil && path != "" {
				rec, err := store.LoadMetadataCache(path)
				if err == nil {
					log.Info("using cached metadata", "path", path)
					return printMetadata(rec.Metadata)
				}
			}
		}

		provider, err := buildProvider(cfg)
		if err != nil {
			return err
		}

		resolver := metadata.NewResolver(provider, resolverConfig(cfg), log)
		result, err := resolver.Resolve(cmd.Context(), doc, targetLanguage)
		if err != nil {
			return err
		}
		log.Info("metadata resolved", "strategy", result.Strategy, "fallback_reason", result.FallbackReason)

		path, err := store.SaveMetadataCache(docHash, result.Metadata, targetLanguage, result.Metadata.Title)
		if err != nil {
			return err
		}
		log.Info("metadata cached", "path", path)

		return printMetadata(result.Metadata)
	},
}

func init() {
	metadataCmd.Flags().StringVar(&metadataTargetLanguage, "target-language", "", "target language recorded with the metadata")
	metadataCmd.Flags().BoolVar(&metadataForce, "force", false, "re-extract even when a cached result exists")
}

// readDocument loads the document argument: "-" reads raw text from
// stdin, anything else goes through the format-aware reader.
func readDocument(arg string) (metadata.DocumentInput, error) {
	if arg != "-" {
		return reader.Read(arg)
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return metadata.DocumentInput{}, fmt.Errorf("failed to read stdin: %w", err)
	}
	return metadata.DocumentInput{RawText: string(data)}, nil
}

// printMetadata renders the metadata in the selected output format,
// keeping the wire field names (author(s), chapters, ...) in both.
func printMetadata(meta metadata.BookMetadata) error {
	if outputFormat == "json" {
		out, err := metadata.MarshalIndented(meta)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	out, err := yaml.Marshal(obj)
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	return nil
}
