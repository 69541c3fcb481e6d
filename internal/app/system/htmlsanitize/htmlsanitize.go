// Package htmlsanitize strips markup from user-entered free text (profile
// notes, destinations, section names) before it is stored.
package htmlsanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// strict removes every tag. Content of script and style elements is
// dropped entirely.
var strict = bluemonday.StrictPolicy()

// StripTags returns s with all HTML removed and entities decoded, so the
// stored value is plain text.
func StripTags(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

// IsPlainText reports whether s contains no HTML tags.
func IsPlainText(s string) bool {
	if s == "" {
		return true
	}
	return html.UnescapeString(strict.Sanitize(s)) == s
}
