// Package translate chunks a transcript into translator-sized batches,
// sanitizes source text against prompt injection, and drives the
// chunked-translation-plus-refine loop. Grounded on
// original_source/src/core/translate.py's Translator class.
package translate

import (
	"regexp"
	"strings"
)

// MaxSanitizedInputChars caps a single source text before it is ever
// placed into a prompt, bounding worst-case prompt size.
const MaxSanitizedInputChars = 10000

var codeFencePattern = regexp.MustCompile("```[\\s\\S]*?```")

var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+instructions?`),
	regexp.MustCompile(`(?i)new\s+instructions?\s*:`),
	regexp.MustCompile(`(?i)^\s*system\s*:`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|prior)\s+(instructions|context)`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an)\s+`),
}

const neutralToken = "[filtered]"

// Sanitize strips fenced code blocks, neutralizes recognized
// prompt-injection patterns, and caps length before the text is ever
// placed into a translator prompt.
func Sanitize(text string) string {
	out := codeFencePattern.ReplaceAllString(text, neutralToken)
	for _, p := range injectionPatterns {
		out = p.ReplaceAllString(out, neutralToken)
	}
	if len(out) > MaxSanitizedInputChars {
		out = out[:MaxSanitizedInputChars]
	}
	return strings.TrimSpace(out)
}

// Wrap places sanitized text inside explicit content-delimiter markers
// so the model can distinguish content from instructions even if a
// sanitized remnant still reads like one.
func Wrap(text string) string {
	return "<<<CONTENT_START>>>\n" + text + "\n<<<CONTENT_END>>>"
}
