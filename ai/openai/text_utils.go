package openai

import (
	"strings"
	"unicode/utf8"
)

// maxInputRunes caps the review text sent to the model.
const maxInputRunes = 4000

// scrubString collapses runs of whitespace and truncates overly long input.
// Punctuation is kept since it carries sentiment.
func scrubString(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= maxInputRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxInputRunes])
}

// isLetter returns true if the rune is an ASCII letter.
func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// stripFences removes markdown code fences some models wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
