// CLAUDE:SUMMARY Name normalization into the canonical dash-delimited comparison key (lowercase, accents stripped).
package names

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))

var (
	nonLetters = regexp.MustCompile(`[^a-z\s]+`)
	separators = regexp.MustCompile(`[\s-]+`)
)

// Normalize maps a free-text name to its canonical comparison key
// (e.g. "Jean-Paul  Dupont" and "JEAN PAUL DUPONT" -> "jean-paul-dupont").
// Empty input yields "". The result only contains a-z and single dashes,
// so Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return ""
	}
	s, _, _ = transform.String(stripMarks, s)
	s = nonLetters.ReplaceAllString(s, "-")
	s = separators.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Compact removes every whitespace rune, so "John Doe" and "JohnDoe" compare equal.
func Compact(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// Key returns the comparison key of a first and family name pair.
func Key(first, family string) string {
	return Normalize(first + " " + family)
}
