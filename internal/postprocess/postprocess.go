// Package postprocess strips common LLM artifacts from enhancement output
// before the text is written into a slide: leaked reasoning blocks, echoed
// instructions, and wrap-around quoting.
package postprocess

import (
	"regexp"
	"strings"
)

// reasoningBlockRe matches complete <thinking>-style blocks. Each tag
// variant is listed explicitly because RE2 has no backreferences.
var reasoningBlockRe = regexp.MustCompile(
	`(?is)<thinking>.*?</thinking>|<think>.*?</think>|<reasoning>.*?</reasoning>`,
)

// openReasoningRe matches a reasoning tag that was never closed (the model
// was cut off mid-thought); everything from the tag onward is dropped.
var openReasoningRe = regexp.MustCompile(
	`(?is)(?:<thinking>|<think>|<reasoning>).*$`,
)

// echoRe matches introductory phrases models prepend even when told not to.
// Anchored to the start and requiring a colon to avoid eating real content.
var echoRe = regexp.MustCompile(
	`(?i)^(?:(?:certainly|sure|of course)[,.]? )?(?:here(?:'s| is)(?: the)? )?(?:improved |refined |enhanced |translated )?(?:translation|text|version)\s*:`,
)

// Clean returns text with reasoning blocks, instruction echoes and
// wrap-around quotes removed, trimmed of surrounding whitespace.
func Clean(text string) string {
	text = reasoningBlockRe.ReplaceAllString(text, "")
	text = strings.TrimSpace(openReasoningRe.ReplaceAllString(text, ""))
	if loc := echoRe.FindStringIndex(text); loc != nil {
		text = strings.TrimSpace(text[loc[1]:])
	}
	return strings.TrimSpace(unquote(text))
}

// unquote strips one matching pair of outer quotes when the entire text is
// wrapped in them.
func unquote(text string) string {
	runes := []rune(text)
	n := len(runes)
	if n < 2 {
		return text
	}
	first, last := runes[0], runes[n-1]
	if (first == '"' && last == '"') ||
		(first == '\'' && last == '\'') ||
		(first == '«' && last == '»') ||
		(first == '“' && last == '”') ||
		(first == '‘' && last == '’') {
		return strings.TrimSpace(string(runes[1 : n-1]))
	}
	return text
}
