// Package state persists metadata cache records and resumable translation
// checkpoints, keyed by a content hash of the full document text.
package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/jackzampolin/scribe/internal/metadata"
)

const (
	metadataCacheDirName    = "metadata_cache"
	translationStateDirName = "translation_state"

	cacheFileSuffix = ".metadata_cache.json"
)

// DocumentHash returns the content-addressed identity of a document: the
// hex-encoded SHA-256 of its full raw text. Identical text resumes
// correctly even if the source file moved or was renamed.
func DocumentHash(fullText string) string {
	sum := sha256.Sum256([]byte(fullText))
	return hex.EncodeToString(sum[:])
}

// MetadataCacheRecord is one persisted metadata resolution. Records are
// never mutated; regenerating metadata writes a new file.
type MetadataCacheRecord struct {
	DocumentHash   string                `json:"document_hash"`
	TargetLanguage string                `json:"target_language"`
	Metadata       metadata.BookMetadata `json:"metadata"`
	CreatedAt      time.Time             `json:"created_at"`
	TitleHint      string                `json:"title_hint"`
}

// TranslationState is the resume checkpoint for one translation job.
// CurrentChunkIndex is the next chunk to process, not the last completed.
type TranslationState struct {
	DocumentHash    string    `json:"document_hash"`
	OutputPath      string    `json:"output_path"`
	CurrentChunk    int       `json:"current_chunk_index"`
	ChunksTotal     int       `json:"chunks_total"`
	CurrentChapter  string    `json:"current_chapter"`
	TranslationTail string    `json:"last_translation_tail"`
	MetadataPath    string    `json:"metadata_path,omitempty"`
	TargetLanguage  string    `json:"target_language"`
	ChunkSize       int       `json:"chunk_size"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Store persists records under an explicit root directory. Construct one
// and pass it by reference into components that need persistence; there is
// no ambient global store.
type Store struct {
	root string
}

// NewStore creates a store rooted at dir, creating the namespace
// subdirectories if needed.
func NewStore(dir string) (*Store, error) {
	for _, sub := range []string{metadataCacheDirName, translationStateDirName} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}
	return &Store{root: dir}, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

func (s *Store) cacheDir() string { return filepath.Join(s.root, metadataCacheDirName) }
func (s *Store) stateDir() string { return filepath.Join(s.root, translationStateDirName) }

// ----- metadata cache -----

// cachePathFor names cache entries {slug}.{hash}.metadata_cache.json; the
// hash keeps multiple untitled documents from colliding.
func (s *Store) cachePathFor(documentHash, titleHint string) string {
	slug := Slugify(titleHint)
	if slug == "" {
		slug = "metadata"
	}
	return filepath.Join(s.cacheDir(), fmt.Sprintf("%s.%s%s", slug, documentHash, cacheFileSuffix))
}

// SaveMetadataCache persists a metadata result for a document.
func (s *Store) SaveMetadataCache(documentHash string, meta metadata.BookMetadata, targetLanguage, titleHint string) (string, error) {
	rec := MetadataCacheRecord{
		DocumentHash:   documentHash,
		TargetLanguage: targetLanguage,
		Metadata:       meta,
		CreatedAt:      time.Now().UTC(),
		TitleHint:      titleHint,
	}
	path := s.cachePathFor(documentHash, titleHint)
	if err := writeJSONAtomic(path, rec); err != nil {
		return "", err
	}
	return path, nil
}

// FindMetadataCache returns the path of the cache entry for a document
// hash, or "" when none exists.
func (s *Store) FindMetadataCache(documentHash string) (string, error) {
	pattern := filepath.Join(s.cacheDir(), "*."+documentHash+cacheFileSuffix)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", fmt.Errorf("failed to scan metadata cache: %w", err)
	}
	if len(matches) == 0 {
		return "", nil
	}
	sort.Strings(matches)
	return matches[0], nil
}

// LoadMetadataCache reads a cache record from a path returned by
// FindMetadataCache.
func (s *Store) LoadMetadataCache(path string) (*MetadataCacheRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata cache: %w", err)
	}
	var rec MetadataCacheRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse metadata cache %s: %w", filepath.Base(path), err)
	}
	return &rec, nil
}

// DeleteMetadataCache removes all cache entries for a document hash.
func (s *Store) DeleteMetadataCache(documentHash string) error {
	pattern := filepath.Join(s.cacheDir(), "*."+documentHash+cacheFileSuffix)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("failed to scan metadata cache: %w", err)
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete metadata cache: %w", err)
		}
	}
	return nil
}

// ----- translation state -----

// statePathFor names checkpoints {title-or-hash-prefix}__{hash-prefix}.json.
func (s *Store) statePathFor(title, documentHash string) string {
	base := Slugify(title)
	if base == "" || base == "not_provided" {
		base = shortHash(documentHash)
	}
	return filepath.Join(s.stateDir(), fmt.Sprintf("%s__%s.json", base, shortHash(documentHash)))
}

// SaveTranslationState persists a checkpoint, overwriting any prior one
// for the same document. The write is durable before returning.
func (s *Store) SaveTranslationState(title string, st *TranslationState) (string, error) {
	st.UpdatedAt = time.Now().UTC()
	path := s.statePathFor(title, st.DocumentHash)
	if err := writeJSONAtomic(path, st); err != nil {
		return "", err
	}
	return path, nil
}

// FindTranslationState scans checkpoints for one whose document hash
// matches. Returns nil when no checkpoint exists.
func (s *Store) FindTranslationState(documentHash string) (string, *TranslationState, error) {
	entries, err := s.ListTranslationStates()
	if err != nil {
		return "", nil, err
	}
	for path, st := range entries {
		if st.DocumentHash == documentHash {
			return path, st, nil
		}
	}
	return "", nil, nil
}

// ListTranslationStates loads every parseable checkpoint, keyed by path.
func (s *Store) ListTranslationStates() (map[string]*TranslationState, error) {
	matches, err := filepath.Glob(filepath.Join(s.stateDir(), "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan translation state: %w", err)
	}
	out := make(map[string]*TranslationState, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var st TranslationState
		if err := json.Unmarshal(data, &st); err != nil {
			continue
		}
		out[path] = &st
	}
	return out, nil
}

// DeleteTranslationState removes the checkpoint for a document hash.
// Deleting a checkpoint that does not exist is not an error.
func (s *Store) DeleteTranslationState(documentHash string) error {
	path, _, err := s.FindTranslationState(documentHash)
	if err != nil {
		return err
	}
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete translation state: %w", err)
	}
	return nil
}

// ----- helpers -----

var slugUnsafe = regexp.MustCompile(`[^a-zA-Z0-9 _\-\(\)\[\]\.]`)
var slugSpaces = regexp.MustCompile(`\s+`)

// Slugify reduces a title to a filesystem-safe name, at most 80 chars.
func Slugify(name string) string {
	name = strings.TrimSpace(name)
	name = slugSpaces.ReplaceAllString(name, " ")
	name = slugUnsafe.ReplaceAllString(name, "")
	name = strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	if len(name) > 80 {
		name = name[:80]
	}
	return name
}

func shortHash(documentHash string) string {
	if len(documentHash) > 16 {
		return documentHash[:16]
	}
	return documentHash
}

// writeJSONAtomic writes via a temp file and rename so a crash mid-write
// never leaves a torn record.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to sync record: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace record: %w", err)
	}
	return nil
}
