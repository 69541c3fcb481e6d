// internal/app/system/normalize/normalize.go
package normalize

import (
	"strings"
)

// Email trims and lowercases an email address for storage and comparison.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Username trims and lowercases a username.
func Username(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Identifier normalizes a login identifier, which may be an email or a username.
func Identifier(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Text trims surrounding whitespace and collapses internal runs of
// whitespace to a single space.
func Text(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// IsEmailLike reports whether an identifier should be looked up by email.
func IsEmailLike(s string) bool {
	return strings.Contains(s, "@")
}

// QueryParam trims a query-string value and lowercases it.
func QueryParam(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
