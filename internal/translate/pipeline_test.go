package translate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/scribe/internal/metadata"
	"github.com/jackzampolin/scribe/internal/providers"
	"github.com/jackzampolin/scribe/internal/state"
)

// threeChunkText splits into exactly 3 chunks at ChunkChars=20: each
// paragraph fits the window alone and the break lands on "\n\n".
const threeChunkText = "Part one text.\n\nPart two text.\n\nPart three."

func testPipeline(t *testing.T, p providers.Provider) (*Pipeline, *state.Store) {
	t.Helper()
	store, err := state.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg := Config{ChunkChars: 20, JSONRepairRetries: 1}
	return NewPipeline(p, store, cfg, nil), store
}

func chunkJSON(chapter, translation string) string {
	return fmt.Sprintf(`{"chapter": %q, "translation": %q}`, chapter, translation)
}

func TestPipeline_EndToEnd(t *testing.T) {
	p := providers.NewMockProvider()
	p.DefaultReply = chunkJSON("Ch1", "X")
	pipe, store := testPipeline(t, p)

	out := filepath.Join(t.TempDir(), "out.txt")
	meta := metadata.BookMetadata{
		Authors: "Jane Doe", Title: "A Book", Language: "en", Summary: "S",
	}

	err := pipe.Run(context.Background(), Request{
		Document:       metadata.DocumentInput{RawText: threeChunkText},
		Metadata:       &meta,
		TargetLanguage: "uk",
		OutputPath:     out,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	text := string(data)

	if !strings.HasPrefix(text, "Title: A Book\nAuthor(s): Jane Doe\nLanguage: en\nTarget language: uk\n") {
		t.Errorf("missing or wrong header:\n%s", text)
	}
	if got := strings.Count(text, "X\n"); got != 3 {
		t.Errorf("expected 3 translated lines, got %d:\n%s", got, text)
	}

	// Checkpoint deleted on completion.
	hash := state.DocumentHash(threeChunkText)
	path, _, err := store.FindTranslationState(hash)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("checkpoint should be deleted after completion, found %s", path)
	}
}

func TestPipeline_ResumeSkipsCompletedChunks(t *testing.T) {
	hash := state.DocumentHash(threeChunkText)
	out := filepath.Join(t.TempDir(), "out.txt")

	// Simulate a run that completed chunks [0..2) then crashed: output
	// holds two lines, checkpoint points at index 2.
	if err := os.WriteFile(out, []byte("part one\npart two\n"), 0o644); err != nil {
		t.Fatalf("failed to seed output: %v", err)
	}
	prior := &state.TranslationState{
		DocumentHash:    hash,
		OutputPath:      out,
		CurrentChunk:    2,
		ChunksTotal:     3,
		CurrentChapter:  "Ch2",
		TranslationTail: "part two",
		TargetLanguage:  "uk",
		ChunkSize:       20,
	}

	p := providers.NewMockProvider()
	p.DefaultReply = chunkJSON("", "part three")
	pipe, store := testPipeline(t, p)

	err := pipe.Run(context.Background(), Request{
		Document:       metadata.DocumentInput{RawText: threeChunkText},
		TargetLanguage: "uk",
		Resume:         prior,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Exactly one chunk processed.
	if p.ChatCallCount() != 1 {
		t.Errorf("expected 1 provider call, got %d", p.ChatCallCount())
	}
	// Resume prompt carries the persisted tail and chapter.
	if !strings.Contains(p.ChatCalls[0].System, "part two") {
		t.Error("resume should carry the persisted translation tail")
	}
	if !strings.Contains(p.ChatCalls[0].User, "Ch2") {
		t.Error("resume should carry the persisted chapter")
	}

	data, _ := os.ReadFile(out)
	text := string(data)
	// Earlier chunks are never re-emitted, no header is injected into a
	// non-empty sink, and the new chunk is appended.
	if text != "part one\npart two\npart three\n" {
		t.Errorf("unexpected output after resume:\n%s", text)
	}

	if path, _, _ := store.FindTranslationState(hash); path != "" {
		t.Errorf("checkpoint should be deleted after completion")
	}
}

func TestPipeline_ResumeUsesCheckpointChunkSize(t *testing.T) {
	hash := state.DocumentHash(threeChunkText)
	out := filepath.Join(t.TempDir(), "out.txt")
	if err := os.WriteFile(out, []byte("part one\n"), 0o644); err != nil {
		t.Fatalf("failed to seed output: %v", err)
	}

	// Checkpoint written against the 3-chunk split (size 20); the
	// pipeline is now configured with a size that would put the whole
	// text in a single chunk.
	prior := &state.TranslationState{
		DocumentHash:   hash,
		OutputPath:     out,
		CurrentChunk:   1,
		ChunksTotal:    3,
		TargetLanguage: "uk",
		ChunkSize:      20,
	}

	p := providers.NewMockProvider()
	p.ChatReplies = []any{
		chunkJSON("", "part two"),
		chunkJSON("", "part three"),
	}
	store, err := state.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pipe := NewPipeline(p, store, Config{ChunkChars: 1000, JSONRepairRetries: 1}, nil)

	err = pipe.Run(context.Background(), Request{
		Document:       metadata.DocumentInput{RawText: threeChunkText},
		TargetLanguage: "uk",
		Resume:         prior,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The resumed split must match the checkpoint's: both remaining
	// chunks of the original 3-chunk split are translated, not zero
	// chunks of a 1-chunk split.
	if p.ChatCallCount() != 2 {
		t.Errorf("expected 2 provider calls, got %d", p.ChatCallCount())
	}
	if !strings.Contains(p.ChatCalls[0].User, "Part two text.") {
		t.Errorf("first resumed chunk should be the checkpoint split's chunk 1:\n%s", p.ChatCalls[0].User)
	}

	data, _ := os.ReadFile(out)
	if string(data) != "part one\npart two\npart three\n" {
		t.Errorf("unexpected output after resume:\n%s", data)
	}
}

func TestPipeline_FailureLeavesCheckpointForResume(t *testing.T) {
	p := providers.NewMockProvider()
	p.ChatReplies = []any{
		chunkJSON("Ch1", "first ok"),
		chunkJSON("Ch1", ""), // empty translation: fatal for this chunk
	}
	pipe, store := testPipeline(t, p)

	out := filepath.Join(t.TempDir(), "out.txt")
	err := pipe.Run(context.Background(), Request{
		Document:       metadata.DocumentInput{RawText: threeChunkText},
		TargetLanguage: "uk",
		OutputPath:     out,
	})
	if err == nil || !strings.Contains(err.Error(), "empty translation") {
		t.Fatalf("expected empty-translation failure, got %v", err)
	}

	hash := state.DocumentHash(threeChunkText)
	_, st, err := store.FindTranslationState(hash)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st == nil {
		t.Fatal("checkpoint must survive a failed run")
	}
	// Chunk 0 completed; the cursor points at the failed chunk.
	if st.CurrentChunk != 1 {
		t.Errorf("CurrentChunk = %d, want 1", st.CurrentChunk)
	}
	if st.TranslationTail != "first ok" {
		t.Errorf("TranslationTail = %q, want %q", st.TranslationTail, "first ok")
	}

	data, _ := os.ReadFile(out)
	if !strings.HasSuffix(string(data), "first ok\n") {
		t.Errorf("completed chunk output missing:\n%s", data)
	}
}

func TestPipeline_PreflightCheckpoint(t *testing.T) {
	p := providers.NewMockProvider()
	p.ChatReplies = []any{&providers.TransientError{Reason: "down"}}
	pipe, store := testPipeline(t, p)

	out := filepath.Join(t.TempDir(), "out.txt")
	err := pipe.Run(context.Background(), Request{
		Document:       metadata.DocumentInput{RawText: threeChunkText},
		TargetLanguage: "uk",
		OutputPath:     out,
	})
	if err == nil {
		t.Fatal("expected failure")
	}

	// The preflight checkpoint exists even though no chunk completed.
	hash := state.DocumentHash(threeChunkText)
	_, st, _ := store.FindTranslationState(hash)
	if st == nil {
		t.Fatal("expected preflight checkpoint")
	}
	if st.CurrentChunk != 0 {
		t.Errorf("CurrentChunk = %d, want 0", st.CurrentChunk)
	}
	if st.ChunksTotal != 3 {
		t.Errorf("ChunksTotal = %d, want 3", st.ChunksTotal)
	}
}

func TestPipeline_ChapterCarryOver(t *testing.T) {
	p := providers.NewMockProvider()
	p.ChatReplies = []any{
		chunkJSON("Ch1", "one"),
		chunkJSON("", "two"),      // no chapter: Ch1 persists
		chunkJSON("Ch2", "three"), // new chapter overwrites
	}
	pipe, _ := testPipeline(t, p)

	out := filepath.Join(t.TempDir(), "out.txt")
	err := pipe.Run(context.Background(), Request{
		Document:       metadata.DocumentInput{RawText: threeChunkText},
		TargetLanguage: "uk",
		OutputPath:     out,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(p.ChatCalls[1].User, "Current chapter (from previous chunk, may overwrite if new chapter begins): Ch1") {
		t.Error("chunk 1 prompt should carry Ch1")
	}
	if !strings.Contains(p.ChatCalls[2].User, "Current chapter (from previous chunk, may overwrite if new chapter begins): Ch1") {
		t.Error("chunk 2 prompt should still carry Ch1 (empty chapter does not reset)")
	}
}

func TestPipeline_TailTruncation(t *testing.T) {
	long := strings.Repeat("y", 400)
	p := providers.NewMockProvider()
	p.ChatReplies = []any{
		chunkJSON("Ch1", long),
		chunkJSON("Ch1", "short"),
		chunkJSON("Ch1", "end"),
	}
	pipe, _ := testPipeline(t, p)

	out := filepath.Join(t.TempDir(), "out.txt")
	err := pipe.Run(context.Background(), Request{
		Document:       metadata.DocumentInput{RawText: threeChunkText},
		TargetLanguage: "uk",
		OutputPath:     out,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Second chunk's system prompt carries at most TailChars of tail.
	sys := p.ChatCalls[1].System
	idx := strings.Index(sys, strings.Repeat("y", TailChars))
	if idx == -1 {
		t.Fatal("expected truncated tail in system prompt")
	}
	if strings.Contains(sys, strings.Repeat("y", TailChars+1)) {
		t.Error("tail exceeds the carry-over bound")
	}
}

func TestPipeline_CachedMetadataWinsOverPassed(t *testing.T) {
	p := providers.NewMockProvider()
	p.DefaultReply = chunkJSON("Ch1", "X")
	pipe, store := testPipeline(t, p)

	hash := state.DocumentHash(threeChunkText)
	cached := metadata.BookMetadata{
		Authors: "Disk Author", Title: "Disk Title", Language: "en", Summary: "S",
	}
	if _, err := store.SaveMetadataCache(hash, cached, "uk", "Disk Title"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	passed := metadata.BookMetadata{
		Authors: "Memory Author", Title: "Memory Title", Language: "en", Summary: "S",
	}
	out := filepath.Join(t.TempDir(), "out.txt")
	err := pipe.Run(context.Background(), Request{
		Document:       metadata.DocumentInput{RawText: threeChunkText},
		Metadata:       &passed,
		TargetLanguage: "uk",
		OutputPath:     out,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, _ := os.ReadFile(out)
	if !strings.Contains(string(data), "Title: Disk Title") {
		t.Errorf("disk cache should win over in-memory metadata:\n%s", data)
	}
}

func TestPipeline_MissingTextFails(t *testing.T) {
	p := providers.NewMockProvider()
	pipe, _ := testPipeline(t, p)

	err := pipe.Run(context.Background(), Request{
		TargetLanguage: "uk",
		OutputPath:     filepath.Join(t.TempDir(), "out.txt"),
	})
	var readErr *metadata.DocumentReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("expected DocumentReadError, got %v", err)
	}
}

func TestGate(t *testing.T) {
	t.Run("open gate does not block", func(t *testing.T) {
		g := NewGate()
		if err := g.Wait(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("paused gate blocks until resume", func(t *testing.T) {
		g := NewGate()
		g.Pause()

		released := make(chan error, 1)
		go func() {
			released <- g.Wait(context.Background())
		}()

		select {
		case <-released:
			t.Fatal("Wait returned while paused")
		case <-time.After(50 * time.Millisecond):
		}

		g.Resume()
		select {
		case err := <-released:
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("Wait did not return after resume")
		}
	})

	t.Run("cancelled context releases waiter", func(t *testing.T) {
		g := NewGate()
		g.Pause()

		ctx, cancel := context.WithCancel(context.Background())
		released := make(chan error, 1)
		go func() {
			released <- g.Wait(ctx)
		}()
		cancel()

		select {
		case err := <-released:
			if err == nil {
				t.Fatal("expected context error")
			}
		case <-time.After(time.Second):
			t.Fatal("Wait did not return after cancel")
		}
	})
}

func TestChapterContext(t *testing.T) {
	chapters := map[string]metadata.ChapterSummary{
		"A": {General: "A-general", Detailed: "A-detailed"},
		"B": {General: "B-general", Detailed: "B-detailed"},
	}

	ctx := chapterContext(chapters, "A")

	if !strings.Contains(ctx, "A-detailed") {
		t.Error("current chapter should use the detailed summary")
	}
	if !strings.Contains(ctx, "B-general") {
		t.Error("other chapters should use the general summary")
	}
	if strings.Contains(ctx, "A-general") {
		t.Error("current chapter's general summary must not appear")
	}
	if strings.Contains(ctx, "B-detailed") {
		t.Error("other chapters' detailed summaries must not appear")
	}

	t.Run("no fuzzy matching", func(t *testing.T) {
		ctx := chapterContext(chapters, "a") // case differs: no match
		if strings.Contains(ctx, "A-detailed") {
			t.Error("matching must be exact")
		}
	})

	t.Run("numbered chapters render in natural order", func(t *testing.T) {
		numbered := map[string]metadata.ChapterSummary{
			"Chapter 10": {General: "tenth"},
			"Chapter 2":  {General: "second"},
		}
		ctx := chapterContext(numbered, "")
		if strings.Index(ctx, "Chapter 2:") > strings.Index(ctx, "Chapter 10:") {
			t.Errorf("Chapter 2 should render before Chapter 10:\n%s", ctx)
		}
	})
}

func TestFirstChapter(t *testing.T) {
	chapters := map[string]metadata.ChapterSummary{
		"Chapter 10": {},
		"Chapter 2":  {},
		"Chapter 1":  {},
	}
	if got := firstChapter(chapters); got != "Chapter 1" {
		t.Errorf("firstChapter = %q, want %q", got, "Chapter 1")
	}
	if got := firstChapter(nil); got != "" {
		t.Errorf("firstChapter(nil) = %q, want empty", got)
	}
}

func TestNaturalLess(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"Chapter 2", "Chapter 10", true},
		{"Chapter 10", "Chapter 2", false},
		{"Chapter 2", "Chapter 2", false},
		{"Chapter 02", "Chapter 2", false}, // equal value, equal length
		{"Chapter 9", "Chapter 11", true},
		{"Prologue", "Prologue 2", true},
		{"1.2", "1.10", true},
		{"Epilogue", "Prologue", true}, // plain byte order for non-digits
	}

	for _, tt := range tests {
		if got := naturalLess(tt.a, tt.b); got != tt.want {
			t.Errorf("naturalLess(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
