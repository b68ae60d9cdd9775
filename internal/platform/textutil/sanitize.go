package textutil

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// PlainText strips every HTML element from value, collapses control characters other than line
// breaks and truncates the result to limit runes. A non-positive limit disables truncation.
func PlainText(value string, limit int) string {
	cleaned := html.UnescapeString(strict.Sanitize(value))
	cleaned = strings.Map(func(r rune) rune {
		if r == '\n' {
			return r
		}
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, cleaned)
	cleaned = strings.TrimSpace(cleaned)
	if limit > 0 {
		if runes := []rune(cleaned); len(runes) > limit {
			cleaned = strings.TrimSpace(string(runes[:limit]))
		}
	}
	return cleaned
}
