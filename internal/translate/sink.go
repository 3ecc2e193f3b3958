package translate

import (
	"fmt"
	"os"
	"strings"

	"github.com/jackzampolin/scribe/internal/metadata"
)

// Sink is the append-only output artifact for one translation job. Every
// append is flushed before the checkpoint advances, so the checkpoint
// never points past data that was not actually written.
type Sink struct {
	f        *os.File
	wasEmpty bool
}

// OpenSink opens (or creates) the output file for appending.
func OpenSink(path string) (*Sink, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat output file: %w", err)
	}
	return &Sink{f: f, wasEmpty: info.Size() == 0}, nil
}

// WriteHeader writes the fixed header block. Only an empty sink gets a
// header; resuming into a partially written file must not repeat it.
func (s *Sink) WriteHeader(meta metadata.BookMetadata, targetLanguage string) error {
	if !s.wasEmpty {
		return nil
	}
	header := fmt.Sprintf("Title: %s\nAuthor(s): %s\nLanguage: %s\nTarget language: %s\n%s\n\n",
		meta.Title,
		meta.Authors,
		meta.Language,
		targetLanguage,
		strings.Repeat("-", 40),
	)
	if _, err := s.f.WriteString(header); err != nil {
		return fmt.Errorf("failed to write output header: %w", err)
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("failed to flush output header: %w", err)
	}
	s.wasEmpty = false
	return nil
}

// Append writes one translated chunk as a newline-terminated paragraph and
// flushes it durably.
func (s *Sink) Append(text string) error {
	if _, err := s.f.WriteString(text + "\n"); err != nil {
		return fmt.Errorf("failed to append translation: %w", err)
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("failed to flush translation: %w", err)
	}
	s.wasEmpty = false
	return nil
}

// Close closes the underlying file.
func (s *Sink) Close() error {
	return s.f.Close()
}
