// Package chunker splits a text frame that exceeds a provider's per-text
// size limit into translatable pieces, preferring paragraph, then sentence,
// then word boundaries so no split lands mid-sentence.
package chunker

import (
	"strings"
	"unicode"
)

// Chunk splits text into pieces each no longer than maxRunes code points.
// Splits are attempted, in order of preference, at paragraph boundaries,
// sentence-ending punctuation, and whitespace; a hard cut at maxRunes is
// the last resort. seps[i] is the whitespace the split between chunks[i]
// and chunks[i+1] consumed, so Join can put it back. If the text already
// fits, a single-element slice is returned. maxRunes <= 0 means unlimited.
func Chunk(text string, maxRunes int) (chunks, seps []string) {
	if maxRunes <= 0 || len([]rune(text)) <= maxRunes {
		return []string{text}, nil
	}

	remaining := text
	for len([]rune(remaining)) > maxRunes {
		split := findSplit(remaining, maxRunes)
		piece := strings.TrimRightFunc(remaining[:split], unicode.IsSpace)
		rest := strings.TrimLeftFunc(remaining[split:], unicode.IsSpace)
		sep := remaining[len(piece) : len(remaining)-len(rest)]
		if piece != "" {
			chunks = append(chunks, piece)
			seps = append(seps, sep)
		} else if n := len(seps); n > 0 {
			seps[n-1] += sep
		}
		remaining = rest
	}
	if remaining != "" {
		chunks = append(chunks, remaining)
	} else if n := len(chunks); n > 0 && n == len(seps) {
		seps = seps[:n-1]
	}
	return chunks, seps
}

// Join reassembles translated chunks of one text frame, restoring the
// separator each split consumed. A missing separator falls back to a
// newline.
func Join(chunks, seps []string) string {
	var sb strings.Builder
	for i, c := range chunks {
		if i > 0 {
			if i-1 < len(seps) {
				sb.WriteString(seps[i-1])
			} else {
				sb.WriteString("\n")
			}
		}
		sb.WriteString(c)
	}
	return sb.String()
}

// findSplit returns the byte index at which to split text so the first
// piece holds at most maxRunes runes.
func findSplit(text string, maxRunes int) int {
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return len(text)
	}
	candidate := runes[:maxRunes]

	// Paragraph boundary, searched from the end.
	asString := string(candidate)
	if idx := strings.LastIndex(asString, "\r\n\r\n"); idx > 0 {
		return idx + 4
	}
	if idx := strings.LastIndex(asString, "\n\n"); idx > 0 {
		return idx + 2
	}

	// Sentence-ending punctuation followed by a space.
	for i := len(candidate) - 2; i > 0; i-- {
		r := candidate[i]
		if (r == '.' || r == '!' || r == '?') && unicode.IsSpace(candidate[i+1]) {
			return len(string(candidate[:i+1]))
		}
	}

	// Word boundary.
	for i := len(candidate) - 1; i > 0; i-- {
		if unicode.IsSpace(candidate[i]) {
			return len(string(candidate[:i]))
		}
	}

	// Hard cut.
	return len(asString)
}
