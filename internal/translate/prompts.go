package translate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jackzampolin/scribe/internal/metadata"
)

// TailChars bounds the carry-over from the previous chunk's translation;
// enough for style continuity without bloating every prompt.
const TailChars = 300

// systemPrompt builds the per-chunk system prompt carrying the previous
// translation tail for continuity.
func systemPrompt(previousTail string) string {
	return fmt.Sprintf(
		`You are a professional book translator. Return STRICT JSON only: {"chapter": "...", "translation": "..."}. No markdown. No commentary.

Previous translation tail (last %d chars):
%s`, TailChars, previousTail)
}

// userPrompt builds the per-chunk user prompt: optional book context,
// target language, the chapter carried from the previous chunk, relevant
// chapter summaries, then the chunk text.
func userPrompt(meta metadata.BookMetadata, targetLanguage, currentChapter, chunkText string) string {
	var b strings.Builder

	if ctx := bookContext(meta); ctx != "" {
		b.WriteString("Optional context:\n")
		b.WriteString(ctx)
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Target language: %s\n", targetLanguage)
	fmt.Fprintf(&b, "Current chapter (from previous chunk, may overwrite if new chapter begins): %s\n", currentChapter)

	if ctx := chapterContext(meta.Chapters, currentChapter); ctx != "" {
		b.WriteString("\nChapter summaries:\n")
		b.WriteString(ctx)
	}

	fmt.Fprintf(&b, "\nChunk text:\n%s\n\nOutput JSON only.", chunkText)
	return b.String()
}

// bookContext lists whichever of author(s), title, and summary carry real
// content rather than the "not provided" sentinel.
func bookContext(meta metadata.BookMetadata) string {
	var lines []string
	if metadata.HasValue(meta.Authors) {
		lines = append(lines, "Author(s): "+meta.Authors)
	}
	if metadata.HasValue(meta.Title) {
		lines = append(lines, "Title: "+meta.Title)
	}
	if metadata.HasValue(meta.Summary) {
		lines = append(lines, "Summary: "+meta.Summary)
	}
	return strings.Join(lines, "\n")
}

// chapterContext renders chapter summaries: the detailed one for the
// chapter exactly matching currentChapter, the general one for all
// others. No fuzzy matching.
func chapterContext(chapters map[string]metadata.ChapterSummary, currentChapter string) string {
	if len(chapters) == 0 {
		return ""
	}

	ids := sortedChapterIDs(chapters)

	var lines []string
	for _, id := range ids {
		summary := chapters[id]
		if id == currentChapter {
			lines = append(lines, fmt.Sprintf("%s (current, detailed): %s", id, summary.Detailed))
		} else {
			lines = append(lines, fmt.Sprintf("%s: %s", id, summary.General))
		}
	}
	return strings.Join(lines, "\n")
}

// firstChapter returns the natural first chapter identifier for seeding
// the carry-over on a fresh run, or "" when no chapters exist.
func firstChapter(chapters map[string]metadata.ChapterSummary) string {
	if len(chapters) == 0 {
		return ""
	}
	return sortedChapterIDs(chapters)[0]
}

// sortedChapterIDs orders chapter identifiers naturally, comparing digit
// runs by value so "Chapter 2" sorts before "Chapter 10".
func sortedChapterIDs(chapters map[string]metadata.ChapterSummary) []string {
	ids := make([]string, 0, len(chapters))
	for id := range chapters {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return naturalLess(ids[i], ids[j])
	})
	return ids
}

func naturalLess(a, b string) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		ca, cb := a[i], b[j]
		if isDigit(ca) && isDigit(cb) {
			ia, jb := i, j
			for ia < len(a) && isDigit(a[ia]) {
				ia++
			}
			for jb < len(b) && isDigit(b[jb]) {
				jb++
			}
			na := strings.TrimLeft(a[i:ia], "0")
			nb := strings.TrimLeft(b[j:jb], "0")
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			if na != nb {
				return na < nb
			}
			i, j = ia, jb
			continue
		}
		if ca != cb {
			return ca < cb
		}
		i++
		j++
	}
	return len(a)-i < len(b)-j
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
