// Package enhancer refines machine-translation drafts with a large
// language model. Enhancement is best effort: callers fall back to the
// draft when the model fails or produces unusable output.
package enhancer

import (
	"context"
	"fmt"
	"strings"
)

// Request carries one draft refinement task.
type Request struct {
	OriginalText string
	DraftText    string
	SourceLang   string
	TargetLang   string
	Feedback     string
	Model        string
}

// Enhancer refines a machine-translation draft. Implementations return the
// refined text only, with no commentary or markup.
type Enhancer interface {
	Name() string
	Enhance(ctx context.Context, req Request) (string, error)
}

// buildPrompt renders the user message for a refinement request.
func buildPrompt(req Request, hint string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Source text (%s):\n%s\n\n", orAuto(req.SourceLang), req.OriginalText)
	fmt.Fprintf(&b, "Draft translation (%s):\n%s\n", req.TargetLang, req.DraftText)
	if req.Feedback != "" {
		fmt.Fprintf(&b, "\nReviewer feedback to address:\n%s\n", req.Feedback)
	}
	if hint != "" {
		b.WriteString("\n")
		b.WriteString(hint)
		b.WriteString("\n")
	}
	return b.String()
}

func orAuto(lang string) string {
	if lang == "" {
		return "auto-detected"
	}
	return lang
}

const systemPrompt = "You are a professional translator polishing a draft translation of presentation slide text. " +
	"Improve fluency, tone and terminology while keeping the meaning of the source text. " +
	"Keep line breaks exactly as in the draft. " +
	"Respond with the improved translation only, no explanations, no quotes, no markup."
