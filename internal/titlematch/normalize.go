// Package titlematch canonicalizes scraped movie titles and scores metadata
// search candidates against them.
package titlematch

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	parentheticalRe = regexp.MustCompile(`\s*\(.*?\)\s*`)
	nonKeyCharRe    = regexp.MustCompile(`[^a-z0-9\s-]`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
	subtitleRe      = regexp.MustCompile(`\s+[-–—]\s+.*$`)
)

func stripMarks(value string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, value)
	if err != nil {
		return value
	}
	return out
}

// Normalize returns the comparison key of a title: diacritics removed,
// lowercased, parentheticals and punctuation dropped, whitespace collapsed.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	value := strings.ToLower(stripMarks(text))
	value = parentheticalRe.ReplaceAllString(value, " ")
	value = nonKeyCharRe.ReplaceAllString(value, " ")
	value = whitespaceRe.ReplaceAllString(value, " ")
	return strings.TrimSpace(value)
}

// NormalizeForSearch prepares a raw listing title for a metadata search query.
// Hyphens inside words are kept; only a spaced " - Subtitle" suffix is cut.
func NormalizeForSearch(raw string) string {
	value := raw
	if idx := strings.Index(value, ":"); idx >= 0 {
		value = value[:idx]
	}
	value = strings.TrimSpace(value)
	value = parentheticalRe.ReplaceAllString(value, " ")
	value = subtitleRe.ReplaceAllString(value, "")
	value = whitespaceRe.ReplaceAllString(value, " ")
	return strings.TrimSpace(value)
}

// Tokens splits a normalized key on spaces.
func Tokens(key string) []string {
	return strings.Fields(key)
}
