// Package chunker splits long input text into provider-sized segments at
// natural boundaries.
package chunker

import (
	"strings"
	"unicode"
)

const (
	// DefaultMaxChars is the per-segment target used when the caller passes
	// a non-positive limit.
	DefaultMaxChars = 3000

	// lookbackWindow bounds how far back from the limit a boundary is searched.
	lookbackWindow = 500
)

// Chunk is one ordered segment of a larger input.
type Chunk struct {
	Text  string
	Index int // 1-based position within the batch
	Total int
}

// Split divides text into ordered chunks of at most maxChars runes each.
// Split points prefer, in order, sentence-ending punctuation followed by
// whitespace, a newline, then a plain space, searched backward from the
// limit within the lookback window. When no boundary exists the text is cut
// exactly at the limit. Segment text is trimmed of boundary whitespace, so
// concatenating all chunks reproduces the input up to that trimming.
// The result is deterministic for a given input and limit.
func Split(text string, maxChars int) []Chunk {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	runes := []rune(text)
	if len(runes) <= maxChars {
		return []Chunk{{Text: strings.TrimSpace(text), Index: 1, Total: 1}}
	}

	var parts []string
	for len(runes) > 0 {
		if len(runes) <= maxChars {
			parts = appendPart(parts, string(runes))
			break
		}
		cut := splitPoint(runes, maxChars)
		parts = appendPart(parts, string(runes[:cut]))
		runes = runes[cut:]
	}

	chunks := make([]Chunk, len(parts))
	for i, p := range parts {
		chunks[i] = Chunk{Text: p, Index: i + 1, Total: len(parts)}
	}
	return chunks
}

func appendPart(parts []string, raw string) []string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return parts
	}
	return append(parts, trimmed)
}

// splitPoint returns the cut position for a rune slice longer than max.
// The returned position is always in (0, max].
func splitPoint(runes []rune, max int) int {
	window := max - lookbackWindow
	if window < 0 {
		window = 0
	}

	for i := max - 1; i >= window; i-- {
		if isSentenceEnd(runes[i]) && i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			return i + 1
		}
	}
	for i := max - 1; i >= window; i-- {
		if runes[i] == '\n' {
			return i + 1
		}
	}
	for i := max - 1; i >= window; i-- {
		if runes[i] == ' ' {
			return i + 1
		}
	}
	return max
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?':
		return true
	}
	return false
}
