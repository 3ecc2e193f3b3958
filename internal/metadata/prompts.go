package metadata

import (
	"bytes"
	_ "embed"
	"strings"
	"text/template"
)

//go:embed extraction_system.tmpl
var extractionSystemPrompt string

//go:embed chunk_summary_user.tmpl
var chunkSummaryUserTmpl string

//go:embed synthesis_user.tmpl
var synthesisUserTmpl string

var (
	chunkSummaryTemplate = template.Must(template.New("chunk_summary").Parse(chunkSummaryUserTmpl))
	synthesisTemplate    = template.Must(template.New("synthesis").Parse(synthesisUserTmpl))
)

const (
	uploadUserPrompt         = "Return the metadata JSON for the uploaded document."
	chunkSummarySystemPrompt = "Summarize the provided chunk of a book. Be VERY brief. Output plain text only (no JSON)."
)

// ExtractionSystemPrompt returns the system prompt for whole-document
// metadata extraction. The same prompt drives summary synthesis.
func ExtractionSystemPrompt() string {
	return strings.TrimSpace(extractionSystemPrompt)
}

// UploadUserPrompt returns the user prompt for the upload strategy.
func UploadUserPrompt() string {
	return uploadUserPrompt
}

// ChunkSummarySystemPrompt returns the system prompt for per-chunk
// summarization in the chunked strategy.
func ChunkSummarySystemPrompt() string {
	return chunkSummarySystemPrompt
}

// ChunkSummaryUserPrompt builds the per-chunk user prompt. Early chunks
// additionally ask the model to guess title, author(s), and chapter list.
func ChunkSummaryUserPrompt(chunkText string, earlyChunk bool) string {
	var buf bytes.Buffer
	data := struct {
		ChunkText  string
		EarlyChunk bool
	}{ChunkText: chunkText, EarlyChunk: earlyChunk}
	if err := chunkSummaryTemplate.Execute(&buf, data); err != nil {
		return "Chunk text:\n" + chunkText
	}
	return strings.TrimSpace(buf.String())
}

// SynthesisUserPrompt builds the summary-of-summaries prompt that turns
// chunk summaries into the final metadata object.
func SynthesisUserPrompt(summaries []string) string {
	var kept []string
	for _, s := range summaries {
		if s = strings.TrimSpace(s); s != "" {
			kept = append(kept, s)
		}
	}
	var buf bytes.Buffer
	data := struct{ Summaries []string }{Summaries: kept}
	if err := synthesisTemplate.Execute(&buf, data); err != nil {
		return "Synthesize the following chunk summaries into the required metadata JSON.\n\n" + strings.Join(kept, "\n")
	}
	return strings.TrimSpace(buf.String())
}
