// Package translator defines the machine-translation capability interface
// and its vendor adapters. Adapters are thin: one bounded network attempt,
// no internal retries — the orchestrator owns retry and fallback policy.
package translator

import (
	"context"
	"fmt"
)

// ProviderError reports a failed remote translation call: transport
// failures, quota exhaustion, authentication problems. Code carries the
// HTTP status when one was received, 0 otherwise.
type ProviderError struct {
	Provider string
	Code     int
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Provider, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Result is the translation of one input text.
type Result struct {
	Text             string
	DetectedLanguage string
}

// BatchLimits describes a provider's per-call capacity. The orchestrator
// partitions work so no single call exceeds either bound.
type BatchLimits struct {
	MaxTexts int
	MaxChars int
}

// Service is a remote machine-translation provider. TranslateBatch is
// order- and length-preserving: result i is the translation of texts[i] and
// the lengths always match on success. sourceLang may be empty for
// provider-side detection.
type Service interface {
	Name() string
	Limits() BatchLimits
	TranslateBatch(ctx context.Context, texts []string, sourceLang, targetLang string) ([]Result, error)
}
