// Package normalize canonicalizes free-text school names and resolves
// candidates against the known-school catalog.
package normalize

import (
	"strings"
	"unicode"
)

// tokenMap expands common school-name abbreviations so "St. Andrews Intl"
// and "Saint Andrews International" normalize to the same token string.
// Values are never keys, which keeps normalization idempotent.
var tokenMap = map[string]string{
	"int":  "international",
	"intl": "international",
	"st":   "saint",
	"sch":  "school",
	"acad": "academy",
	"brit": "british",
	"amer": "american",
	"prep": "preparatory",
}

// Name canonicalizes a school name into a comparable token string:
// lower-case, apostrophes stripped, remaining punctuation collapsed to
// spaces, abbreviation tokens expanded. Always returns a string, possibly
// empty.
func Name(raw string) string {
	lowered := strings.ToLower(raw)

	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		switch {
		case r == '\'' || r == '’' || r == '‘' || r == '`':
			// apostrophe-like punctuation disappears entirely: "andrew's" -> "andrews"
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	words := strings.Fields(b.String())
	for i, word := range words {
		if expanded, ok := tokenMap[word]; ok {
			words[i] = expanded
		}
	}
	return strings.Join(words, " ")
}
