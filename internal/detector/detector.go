// Package detector provides language identification for the translation
// pipeline: deciding that a text frame is already written in the target
// language (so machine translation can be skipped) and confirming that an
// LLM enhancement still came back in the target language.
package detector

import (
	"strings"

	lingua "github.com/pemistahl/lingua-go"
)

// MinDetectableRunes is the shortest text the detector will judge.
// Detection on shorter fragments is unreliable, so such texts are always
// translated and never rejected.
const MinDetectableRunes = 20

type Detector struct {
	detector lingua.LanguageDetector
}

// New builds a detector over all languages lingua knows. Construction is
// expensive; reuse the instance.
func New() *Detector {
	detector := lingua.NewLanguageDetectorBuilder().
		FromAllLanguages().
		Build()

	return &Detector{detector: detector}
}

func (d *Detector) Detect(text string) (lingua.Language, bool) {
	if text == "" {
		return lingua.Unknown, false
	}
	return d.detector.DetectLanguageOf(text)
}

// DetectISO returns the ISO 639-1 code of the detected language.
func (d *Detector) DetectISO(text string) (string, bool) {
	lang, ok := d.Detect(text)
	if !ok {
		return "", false
	}
	return lang.IsoCode639_1().String(), true
}

// Policy turns raw detection into the two pipeline decisions. The exact
// heuristic stays pluggable behind the orchestrator's interface; this
// implementation compares ISO 639-1 codes.
type Policy struct {
	det *Detector
}

func NewPolicy(det *Detector) *Policy {
	return &Policy{det: det}
}

// AlreadyInLanguage reports whether text is confidently written in lang.
// It errs on the side of translating: short texts and ambiguous detections
// return false.
func (p *Policy) AlreadyInLanguage(text, lang string) bool {
	trimmed := strings.TrimSpace(text)
	if len([]rune(trimmed)) < MinDetectableRunes {
		return false
	}
	detected, ok := p.det.DetectISO(trimmed)
	if !ok {
		return false
	}
	return strings.EqualFold(detected, primarySubtag(lang))
}

// Confirms reports whether text plausibly is written in lang. It errs on
// the side of accepting: short texts and ambiguous detections pass, only a
// confident mismatch fails.
func (p *Policy) Confirms(text, lang string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	if len([]rune(trimmed)) < MinDetectableRunes {
		return true
	}
	detected, ok := p.det.DetectISO(trimmed)
	if !ok {
		return true
	}
	return strings.EqualFold(detected, primarySubtag(lang))
}

// primarySubtag reduces a BCP 47 tag like "pt-BR" to its language subtag.
func primarySubtag(lang string) string {
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		return lang[:i]
	}
	return lang
}
