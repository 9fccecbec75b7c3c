package textutil

import (
	"strings"
	"unicode"
)

const unknownSlug = "unknown"

// SanitizeToken turns a video stem or collection name into a lowercase slug
// safe for directory and lock-file names. Letters, digits, '-' and '_' are
// kept; every other rune becomes '_' one for one, so "A (B)" maps to "a__b".
// Leading and trailing separators are trimmed and an empty result is
// reported as "unknown".
func SanitizeToken(value string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return unicode.ToLower(r)
		case r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, strings.TrimSpace(value))
	if slug = strings.Trim(slug, "_-"); slug == "" {
		return unknownSlug
	}
	return slug
}
