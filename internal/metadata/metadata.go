// Package metadata resolves normalized, schema-validated book metadata
// for a document, choosing between a whole-document upload strategy and a
// chunked summarize-then-synthesize fallback.
package metadata

import (
	"encoding/json"
	"fmt"
	"strings"
)

// NotProvided is the sentinel written into required fields the model could
// not fill.
const NotProvided = "not provided"

// Strategy identifies how a metadata result was produced.
type Strategy string

const (
	StrategyUpload  Strategy = "upload"
	StrategyChunked Strategy = "chunked"
	StrategyCached  Strategy = "cached_metadata"
	StrategyResume  Strategy = "resume"
)

// DocumentInput is the material a caller hands to the resolver. At least
// one of FilePath/RawText must be resolvable to text before chunk-based
// processing; populating RawText from FilePath is owned by the caller.
type DocumentInput struct {
	FilePath     string
	RawText      string
	FilenameHint string
}

// ChapterSummary is the per-chapter value in the metadata contract: a
// short general summary plus a detailed one used when translating the
// chapter itself.
type ChapterSummary struct {
	General  string `json:"general"`
	Detailed string `json:"detailed"`
}

// BookMetadata is the normalized metadata contract. Required fields that
// the model could not fill hold the NotProvided sentinel.
type BookMetadata struct {
	Authors        string                    `json:"author(s)"`
	Title          string                    `json:"title"`
	Language       string                    `json:"language"`
	Summary        string                    `json:"summary"`
	Chapters       map[string]ChapterSummary `json:"chapters"`
	TargetLanguage string                    `json:"target_language,omitempty"`
}

// Result is the outcome of one metadata resolution.
type Result struct {
	Metadata       BookMetadata `json:"metadata"`
	Strategy       Strategy     `json:"strategy_used"`
	FallbackReason string       `json:"fallback_reason,omitempty"`
}

// DocumentReadError indicates raw text was unavailable when a strategy
// required it. This is a hard precondition failure, not recoverable inside
// the resolver.
type DocumentReadError struct {
	Reason string
}

func (e *DocumentReadError) Error() string {
	return fmt.Sprintf("document read error: %s", e.Reason)
}

// Decode normalizes a raw metadata object, validates it against the
// required-keys schema, and returns the typed result.
func Decode(raw json.RawMessage) (BookMetadata, error) {
	var loose map[string]any
	if err := json.Unmarshal(raw, &loose); err != nil {
		return BookMetadata{}, fmt.Errorf("failed to decode metadata object: %w", err)
	}

	Normalize(loose)
	if err := Validate(loose); err != nil {
		return BookMetadata{}, err
	}

	normalized, err := json.Marshal(loose)
	if err != nil {
		return BookMetadata{}, fmt.Errorf("failed to re-encode metadata: %w", err)
	}
	var meta BookMetadata
	if err := json.Unmarshal(normalized, &meta); err != nil {
		return BookMetadata{}, fmt.Errorf("failed to decode normalized metadata: %w", err)
	}
	return meta, nil
}

// Normalize rewrites a raw metadata object in place: empty or missing
// required string fields become the NotProvided sentinel, a list-valued
// author(s) is joined with commas, and a NotProvided chapters value
// becomes an empty object.
func Normalize(obj map[string]any) {
	for _, key := range []string{"author(s)", "title", "language", "summary"} {
		switch v := obj[key].(type) {
		case nil:
			obj[key] = NotProvided
		case string:
			if strings.TrimSpace(v) == "" {
				obj[key] = NotProvided
			}
		}
	}

	if list, ok := obj["author(s)"].([]any); ok {
		var names []string
		for _, item := range list {
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
				names = append(names, s)
			}
		}
		if len(names) == 0 {
			obj["author(s)"] = NotProvided
		} else {
			obj["author(s)"] = strings.Join(names, ", ")
		}
	}

	switch ch := obj["chapters"].(type) {
	case nil:
		obj["chapters"] = map[string]any{}
	case string:
		if strings.EqualFold(strings.TrimSpace(ch), NotProvided) {
			obj["chapters"] = map[string]any{}
		}
	}
}

// HasValue reports whether a normalized field carries real content rather
// than the NotProvided sentinel.
func HasValue(field string) bool {
	return field != "" && field != NotProvided
}
