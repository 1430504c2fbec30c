// Package placeholder protects content that must survive an LLM pass
// verbatim — URLs, email addresses — by swapping it for numbered markers
// ([PH0], [PH1], …) the model is instructed to leave alone. Restore puts
// the originals back afterwards, and Validate detects markers the model
// lost so the caller can fall back to the unenhanced draft.
package placeholder

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	reURL   = regexp.MustCompile(`https?://[^\s<>"']+`)
	reEmail = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

	reMarker = regexp.MustCompile(`\[PH(\d+)\]`)
)

// Protect replaces URLs and email addresses with numbered markers in the
// order they appear and returns the modified text plus the captured
// originals for Restore.
func Protect(text string) (string, []string) {
	var captured []string
	replace := func(match string) string {
		marker := fmt.Sprintf("[PH%d]", len(captured))
		captured = append(captured, match)
		return marker
	}

	// URLs first so an address inside a URL query is not matched twice.
	text = reURL.ReplaceAllStringFunc(text, replace)
	text = reEmail.ReplaceAllStringFunc(text, replace)
	return text, captured
}

// Restore substitutes markers back with the originals captured by Protect.
// Unknown indices are left as-is.
func Restore(text string, captured []string) string {
	return reMarker.ReplaceAllStringFunc(text, func(match string) string {
		sub := reMarker.FindStringSubmatch(match)
		idx, err := strconv.Atoi(sub[1])
		if err != nil || idx < 0 || idx >= len(captured) {
			return match
		}
		return captured[idx]
	})
}

// Validate returns the indices of markers that disappeared from text. An
// empty result means every protected span can be restored.
func Validate(text string, captured []string) []int {
	var missing []int
	for i := range captured {
		if !strings.Contains(text, fmt.Sprintf("[PH%d]", i)) {
			missing = append(missing, i)
		}
	}
	return missing
}

// InstructionHint is appended to LLM prompts when markers are present.
func InstructionHint() string {
	return "Keep all [PHn] markers exactly as written; do not translate, move, or remove them."
}
