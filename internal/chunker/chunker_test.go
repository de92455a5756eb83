package chunker

import (
	"strings"
	"testing"
)

func stripSpace(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func TestSingleChunkWhenUnderLimit(t *testing.T) {
	text := "A short paragraph that fits in one request."
	chunks := Split(text, 3000)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != text {
		t.Fatalf("unexpected chunk text: %q", chunks[0].Text)
	}
	if chunks[0].Index != 1 || chunks[0].Total != 1 {
		t.Fatalf("unexpected ordinals: %d/%d", chunks[0].Index, chunks[0].Total)
	}
}

func TestChunkLengthBound(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 200)
	chunks := Split(text, 250)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for _, ch := range chunks {
		if n := len([]rune(ch.Text)); n > 250 {
			t.Fatalf("chunk %d has %d runes, limit 250", ch.Index, n)
		}
		if ch.Total != len(chunks) {
			t.Fatalf("chunk %d reports total %d, want %d", ch.Index, ch.Total, len(chunks))
		}
	}
}

func TestContentPreservedUpToBoundaryWhitespace(t *testing.T) {
	text := strings.Repeat("Sentence one is here. Sentence two follows!\nAnd a third? ", 120)
	chunks := Split(text, 300)

	var joined strings.Builder
	for _, ch := range chunks {
		joined.WriteString(ch.Text)
		joined.WriteString(" ")
	}
	if stripSpace(joined.String()) != stripSpace(text) {
		t.Fatal("chunk concatenation lost content beyond boundary whitespace")
	}
}

func TestSentenceBoundaryPreferred(t *testing.T) {
	// The period sits inside the lookback window, so the split must land
	// right after it rather than at the space inside the second sentence.
	text := strings.Repeat("a", 80) + ". " + strings.Repeat("b", 40) + " " + strings.Repeat("c", 40)
	chunks := Split(text, 100)
	if len(chunks) < 2 {
		t.Fatalf("expected a split, got %d chunks", len(chunks))
	}
	if !strings.HasSuffix(chunks[0].Text, ".") {
		t.Fatalf("expected first chunk to end at sentence boundary, got %q", chunks[0].Text)
	}
}

func TestNewlineBoundaryWhenNoSentenceEnd(t *testing.T) {
	text := strings.Repeat("a", 80) + "\n" + strings.Repeat("b", 80)
	chunks := Split(text, 100)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Text != strings.Repeat("a", 80) {
		t.Fatalf("expected newline split, got %q", chunks[0].Text)
	}
}

func TestHardSplitWithoutBoundary(t *testing.T) {
	text := strings.Repeat("x", 250)
	chunks := Split(text, 100)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	want := []int{100, 100, 50}
	for i, ch := range chunks {
		if len(ch.Text) != want[i] {
			t.Fatalf("chunk %d has length %d, want %d", i+1, len(ch.Text), want[i])
		}
	}
}

func TestDeterministic(t *testing.T) {
	text := strings.Repeat("Mixed content, some sentences. Others not so much\nwith newlines too. ", 100)
	first := Split(text, 400)
	second := Split(text, 400)
	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("chunk %d differs between runs", i)
		}
	}
}
