package prompt

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/mementohq/memento-go/core"
)

func cand(chunkID, text string, sim float64) core.Candidate {
	return core.Candidate{
		ChunkID:       chunkID,
		MemoryID:      "m-" + chunkID,
		ContentType:   core.ContentTypeText,
		Text:          text,
		Similarity:    sim,
		AdjustedScore: sim,
	}
}

func TestAssembleSelectsBudgetedPrefix(t *testing.T) {
	ranked := []core.Candidate{
		cand("c1", strings.Repeat("a", 100), 0.9),
		cand("c2", strings.Repeat("b", 100), 0.8),
		cand("c3", strings.Repeat("c", 100), 0.7),
	}

	ctx := Assemble(ranked, 320)
	if len(ctx.Included) != 2 {
		t.Fatalf("included %d candidates, want 2", len(ctx.Included))
	}
	if ctx.Included[0].ChunkID != "c1" || ctx.Included[1].ChunkID != "c2" {
		t.Errorf("wrong prefix: %s, %s", ctx.Included[0].ChunkID, ctx.Included[1].ChunkID)
	}
	if len(ctx.Text) > 320 {
		t.Errorf("context length %d exceeds budget", len(ctx.Text))
	}
	if !strings.Contains(ctx.Text, "[Source 1]") || !strings.Contains(ctx.Text, "[Source 2]") {
		t.Error("source attribution missing")
	}
	if strings.Contains(ctx.Text, "ccc") {
		t.Error("over-budget candidate leaked into context")
	}
}

func TestAssemblePreservesRankOrder(t *testing.T) {
	ranked := []core.Candidate{
		cand("first", "first text", 0.9),
		cand("second", "second text", 0.5),
	}
	ctx := Assemble(ranked, DefaultBudget)
	if strings.Index(ctx.Text, "first text") > strings.Index(ctx.Text, "second text") {
		t.Error("context blocks out of rank order")
	}
}

func TestAssembleTruncatesSingleOversizedChunk(t *testing.T) {
	ranked := []core.Candidate{cand("big", strings.Repeat("x", 5000), 0.9)}

	ctx := Assemble(ranked, 300)
	if len(ctx.Included) != 1 {
		t.Fatalf("included %d candidates, want 1", len(ctx.Included))
	}
	if ctx.Text == "" {
		t.Fatal("context is empty; truncation fallback did not run")
	}
	if len(ctx.Text) > 300 {
		t.Errorf("truncated context length %d exceeds budget", len(ctx.Text))
	}
}

func TestAssembleSkipsDuplicateText(t *testing.T) {
	ranked := []core.Candidate{
		cand("c1", "same text", 0.9),
		cand("c2", "same text", 0.8),
		cand("c3", "other text", 0.7),
	}
	ctx := Assemble(ranked, DefaultBudget)
	if len(ctx.Included) != 2 {
		t.Fatalf("included %d candidates, want 2 (duplicate skipped)", len(ctx.Included))
	}
	if ctx.Included[1].ChunkID != "c3" {
		t.Errorf("duplicate not skipped, second included is %s", ctx.Included[1].ChunkID)
	}
}

func TestAssembleEmpty(t *testing.T) {
	ctx := Assemble(nil, DefaultBudget)
	if ctx.Text != "" || len(ctx.Included) != 0 {
		t.Errorf("empty input produced context %+v", ctx)
	}
}

func TestSystemFallsBackWithoutContext(t *testing.T) {
	withCtx := System(Context{Text: "[Source 1]..."})
	without := System(Context{})
	if withCtx == without {
		t.Error("system prompt identical with and without context")
	}
	if !strings.Contains(withCtx, "[Source 1]") {
		t.Error("context not embedded in system prompt")
	}
	if !strings.Contains(without, "No relevant information") {
		t.Error("no-context fallback missing")
	}
}

func TestExtractSourcesCited(t *testing.T) {
	ctx := Context{Included: []core.Candidate{
		cand("c1", "alpha", 0.9),
		cand("c2", "beta", 0.8),
		cand("c3", "gamma", 0.7),
	}}

	sources := ExtractSources("Per [Source 1] and [Source 3], yes.", ctx)
	if len(sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(sources))
	}
	if sources[0].ChunkID != "c1" || sources[1].ChunkID != "c3" {
		t.Errorf("wrong sources: %s, %s", sources[0].ChunkID, sources[1].ChunkID)
	}
	if sources[0].MemoryID != "m-c1" || sources[0].Snippet != "alpha" {
		t.Errorf("source fields wrong: %+v", sources[0])
	}
}

func TestExtractSourcesUncitedReportsAllIncluded(t *testing.T) {
	ctx := Context{Included: []core.Candidate{
		cand("c1", "alpha", 0.9),
		cand("c2", "beta", 0.8),
	}}
	sources := ExtractSources("An answer with no citations.", ctx)
	if len(sources) != 2 {
		t.Fatalf("got %d sources, want all %d included", len(sources), 2)
	}
}

func TestSourceSnippetRuneSafeTruncation(t *testing.T) {
	// Multi-byte rune straddles the snippet boundary; trim must back up
	// to a rune start rather than cut mid-sequence.
	text := strings.Repeat("a", 199) + "héllo " + strings.Repeat("b", 50)
	ctx := Context{Included: []core.Candidate{cand("c1", text, 0.9)}}

	sources := ExtractSources("See [Source 1].", ctx)
	if len(sources) != 1 {
		t.Fatalf("got %d sources, want 1", len(sources))
	}
	snip := sources[0].Snippet
	if snip == "" {
		t.Fatal("snippet is empty")
	}
	if !utf8.ValidString(snip) {
		t.Errorf("snippet cut mid-rune: %q", snip)
	}
}

func TestSourceSnippetInvalidUTF8Input(t *testing.T) {
	// Input that is not valid UTF-8 at all must still yield a non-empty
	// snippet instead of shrinking to nothing.
	text := strings.Repeat("\xff", 300)
	ctx := Context{Included: []core.Candidate{cand("c1", text, 0.9)}}

	sources := ExtractSources("See [Source 1].", ctx)
	if len(sources) != 1 {
		t.Fatalf("got %d sources, want 1", len(sources))
	}
	if sources[0].Snippet == "" {
		t.Error("snippet is empty for invalid UTF-8 input")
	}
}

func TestAssembleTruncationInvalidUTF8(t *testing.T) {
	ranked := []core.Candidate{cand("big", strings.Repeat("\xfe", 5000), 0.9)}

	ctx := Assemble(ranked, 300)
	if ctx.Text == "" {
		t.Fatal("context is empty for invalid UTF-8 input")
	}
	if len(ctx.Text) > 300 {
		t.Errorf("truncated context length %d exceeds budget", len(ctx.Text))
	}
}

func TestExtractSourcesIgnoresOutOfRange(t *testing.T) {
	ctx := Context{Included: []core.Candidate{cand("c1", "alpha", 0.9)}}
	sources := ExtractSources("See [Source 7].", ctx)
	// No valid citation: fall back to all included.
	if len(sources) != 1 || sources[0].ChunkID != "c1" {
		t.Errorf("got %+v", sources)
	}
}
