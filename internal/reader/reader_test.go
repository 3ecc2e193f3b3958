package reader

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackzampolin/scribe/internal/metadata"
)

func TestRead(t *testing.T) {
	t.Run("plain text passthrough", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "book.txt")
		if err := os.WriteFile(path, []byte("Chapter one.\n\nIt begins."), 0o644); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		input, err := Read(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if input.RawText != "Chapter one.\n\nIt begins." {
			t.Errorf("RawText = %q", input.RawText)
		}
		if input.FilePath != path {
			t.Errorf("FilePath = %q, want %q", input.FilePath, path)
		}
		if input.FilenameHint != "book.txt" {
			t.Errorf("FilenameHint = %q", input.FilenameHint)
		}
	})

	t.Run("markdown passthrough", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "notes.md")
		if err := os.WriteFile(path, []byte("# Title\n\nBody."), 0o644); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		input, err := Read(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if input.RawText != "# Title\n\nBody." {
			t.Errorf("RawText = %q", input.RawText)
		}
	})

	t.Run("pdf content stream text", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "book.pdf")
		writeMinimalPDF(t, path, "Hello from page one")

		input, err := Read(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(input.RawText, "Hello from page one") {
			t.Errorf("RawText = %q, want page text", input.RawText)
		}
	})

	t.Run("corrupt pdf", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.pdf")
		if err := os.WriteFile(path, []byte("%PDF-1.4\ngarbage"), 0o644); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_, err := Read(path)
		var readErr *metadata.DocumentReadError
		if !errors.As(err, &readErr) {
			t.Fatalf("expected DocumentReadError, got %v", err)
		}
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "book.epub")
		if err := os.WriteFile(path, []byte("zip"), 0o644); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_, err := Read(path)
		var readErr *metadata.DocumentReadError
		if !errors.As(err, &readErr) {
			t.Fatalf("expected DocumentReadError, got %v", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Read(filepath.Join(t.TempDir(), "nope.txt"))
		var readErr *metadata.DocumentReadError
		if !errors.As(err, &readErr) {
			t.Fatalf("expected DocumentReadError, got %v", err)
		}
	})

	t.Run("whitespace-only document", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "blank.txt")
		if err := os.WriteFile(path, []byte("  \n\t\n"), 0o644); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_, err := Read(path)
		var readErr *metadata.DocumentReadError
		if !errors.As(err, &readErr) {
			t.Fatalf("expected DocumentReadError, got %v", err)
		}
	})
}

// writeMinimalPDF assembles a one-page PDF with an uncompressed content
// stream showing text, computing xref offsets as it goes.
func writeMinimalPDF(t *testing.T, path, text string) {
	t.Helper()

	stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
	objs := []string{
		"1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n",
		"2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n",
		"3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>\nendobj\n",
		fmt.Sprintf("4 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", len(stream), stream),
		"5 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, obj := range objs {
		offsets[i] = buf.Len()
		buf.WriteString(obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objs)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("failed to write test PDF: %v", err)
	}
}

func TestDecodePageText(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "single show operator",
			content: "BT /F1 12 Tf (Hello world) Tj ET",
			want:    "Hello world",
		},
		{
			name:    "TJ array with kerning",
			content: "BT [(Hel) -20 (lo)] TJ ET",
			want:    "Hel lo",
		},
		{
			name:    "escaped parens",
			content: `BT (a \(quoted\) word) Tj ET`,
			want:    "a (quoted) word",
		},
		{
			name:    "nested parens",
			content: "BT (outer (inner) text) Tj ET",
			want:    "outer (inner) text",
		},
		{
			name:    "no text operators",
			content: "q 1 0 0 1 0 0 cm /Im0 Do Q",
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decodePageText(tt.content); got != tt.want {
				t.Errorf("decodePageText(%q) = %q, want %q", tt.content, got, tt.want)
			}
		})
	}
}
