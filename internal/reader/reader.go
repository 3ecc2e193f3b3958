// Package reader loads document text for the pipeline. Plain text and
// markdown pass through untouched; PDF text is recovered from page
// content streams.
package reader

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/jackzampolin/scribe/internal/metadata"
)

// Read loads the document at path and returns it as pipeline input.
// The format is selected by file extension: .txt and .md are read as-is,
// .pdf goes through content-stream text recovery. Anything else is an
// error.
func Read(path string) (metadata.DocumentInput, error) {
	input := metadata.DocumentInput{
		FilePath:     path,
		FilenameHint: filepath.Base(path),
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		data, err := os.ReadFile(path)
		if err != nil {
			return input, &metadata.DocumentReadError{Reason: fmt.Sprintf("failed to read %s: %v", path, err)}
		}
		input.RawText = string(data)
	case ".pdf":
		text, err := extractPDFText(path)
		if err != nil {
			return input, &metadata.DocumentReadError{Reason: fmt.Sprintf("failed to extract text from %s: %v", path, err)}
		}
		input.RawText = text
	default:
		return input, &metadata.DocumentReadError{Reason: fmt.Sprintf("unsupported document type: %s", filepath.Ext(path))}
	}

	if strings.TrimSpace(input.RawText) == "" {
		return input, &metadata.DocumentReadError{Reason: fmt.Sprintf("document %s contains no text", path)}
	}
	return input, nil
}

// extractPDFText pulls the text-show operands out of every page's content
// stream. This recovers text from straightforwardly encoded PDFs; scanned
// or exotically encoded pages come back empty.
func extractPDFText(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.Cmd = model.EXTRACTCONTENT
	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return "", fmt.Errorf("failed to parse PDF: %w", err)
	}

	var b strings.Builder
	for page := 1; page <= ctx.PageCount; page++ {
		r, err := pdfcpu.ExtractPageContent(ctx, page)
		if err != nil {
			return "", fmt.Errorf("failed to extract page %d content: %w", page, err)
		}
		content, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("failed to read page %d content: %w", page, err)
		}
		if text := decodePageText(string(content)); text != "" {
			b.WriteString(text)
			b.WriteString("\n\n")
		}
	}
	return b.String(), nil
}

// decodePageText collects the literal string operands of a page content
// stream (the arguments to Tj, TJ and quote show operators) and joins
// them with spaces.
func decodePageText(content string) string {
	var parts []string
	i := 0
	for i < len(content) {
		if content[i] != '(' {
			i++
			continue
		}
		literal, next := parseStringLiteral(content, i)
		if literal != "" {
			parts = append(parts, literal)
		}
		i = next
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// parseStringLiteral decodes one PDF literal string starting at the '('
// at index start, honoring backslash escapes and balanced nested parens.
// It returns the decoded text and the index just past the closing ')'.
func parseStringLiteral(content string, start int) (string, int) {
	var b strings.Builder
	depth := 0
	i := start
	for i < len(content) {
		c := content[i]
		switch c {
		case '\\':
			if i+1 < len(content) {
				b.WriteByte(unescape(content[i+1]))
				i += 2
				continue
			}
			i++
		case '(':
			depth++
			if depth > 1 {
				b.WriteByte(c)
			}
			i++
		case ')':
			depth--
			if depth == 0 {
				return b.String(), i + 1
			}
			b.WriteByte(c)
			i++
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), i
}

func unescape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	default:
		return c
	}
}
