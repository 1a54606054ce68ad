package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameCanonicalizes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "HARROW SCHOOL", "harrow school"},
		{"strips apostrophes", "St. Andrew's Int'l School", "saint andrews international school"},
		{"punctuation to spaces", "Lycee Franco-Americain (Bangkok)", "lycee franco americain bangkok"},
		{"collapses whitespace", "  The   British    Sch  ", "the british school"},
		{"expands abbreviations", "Brit Int Sch of Prague", "british international school of prague"},
		{"keeps digits", "School 21", "school 21"},
		{"empty input", "", ""},
		{"only punctuation", "*** !!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Name(tt.input))
		})
	}
}

func TestNameIdempotent(t *testing.T) {
	inputs := []string{
		"St. Andrew's Int'l School",
		"saint andrews international school",
		"Brit Acad of Música",
		"Prep School No. 4",
	}
	for _, input := range inputs {
		once := Name(input)
		assert.Equal(t, once, Name(once), "normalize must be idempotent for %q", input)
	}
}

func TestNameConvergence(t *testing.T) {
	// Abbreviated and expanded spellings of the same school converge.
	a := Name("St. Andrew's Int'l School")
	b := Name("saint andrews international school")
	assert.Equal(t, a, b)
}
