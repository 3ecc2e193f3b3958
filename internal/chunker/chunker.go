// Package chunker splits document text into bounded-size pieces for
// provider calls, preferring natural boundaries where possible.
package chunker

import (
	"errors"
	"strings"
)

// ErrInvalidChunkSize is returned when maxChars is not positive.
var ErrInvalidChunkSize = errors.New("chunk size must be > 0")

// splitSeparators are tried in priority order. The first separator type
// found anywhere in the window wins, and the cut happens immediately after
// its last occurrence in the window.
var splitSeparators = []string{"\n\n", "\n", ". ", "? ", "! ", "; ", ": ", ", ", " "}

// Split splits text into chunks of at most maxChars characters, preferring
// natural boundaries (paragraph breaks, line breaks, sentence ends, spaces)
// and falling back to hard cuts only when no boundary exists in the window.
// Every chunk is stripped of surrounding whitespace; all-whitespace chunks
// are dropped. An empty input yields no chunks.
func Split(text string, maxChars int) ([]string, error) {
	if maxChars <= 0 {
		return nil, ErrInvalidChunkSize
	}
	if text == "" {
		return nil, nil
	}

	runes := []rune(text)
	n := len(runes)

	var chunks []string
	i := 0
	for i < n {
		j := i + maxChars
		if j >= n {
			// Trailing remainder: no boundary search.
			if tail := strings.TrimSpace(string(runes[i:n])); tail != "" {
				chunks = append(chunks, tail)
			}
			break
		}

		window := string(runes[i:j])
		splitAt := -1
		for _, sep := range splitSeparators {
			if k := strings.LastIndex(window, sep); k != -1 {
				splitAt = i + len([]rune(window[:k+len(sep)]))
				break
			}
		}

		// Hard cut when no boundary was found or the cut would not advance.
		if splitAt <= i {
			splitAt = j
		}

		if chunk := strings.TrimSpace(string(runes[i:splitAt])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		i = splitAt
	}

	return chunks, nil
}

// SplitHard splits text into chunks of exactly maxChars characters (the
// final chunk may be shorter). No boundary preference, no trimming beyond
// what Split applies.
func SplitHard(text string, maxChars int) ([]string, error) {
	if maxChars <= 0 {
		return nil, ErrInvalidChunkSize
	}
	if text == "" {
		return nil, nil
	}

	runes := []rune(text)
	var chunks []string
	for i := 0; i < len(runes); i += maxChars {
		j := i + maxChars
		if j > len(runes) {
			j = len(runes)
		}
		chunks = append(chunks, string(runes[i:j]))
	}
	return chunks, nil
}
