package autolabel

import (
	"strings"
	"unicode"
)

// isJoiner returns true for punctuation that commonly appears INSIDE terms.
// These are preserved during canonicalization so that "c++", "node.js" or
// "ci/cd" survive as one pattern.
func isJoiner(r rune) bool {
	switch r {
	case '\'', '-', '.', '_', '/', '#', '&', '+':
		return true
	default:
		return false
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Canonicalize transforms text into the normalized form used for both
// vocabulary patterns and the scanned haystack:
// - Fold to lowercase
// - Normalize curly apostrophes and dashes
// - Keep letters, digits and joiners
// - Replace everything else with a single space, trimmed at both ends
func Canonicalize(s string) string {
	var out strings.Builder
	out.Grow(len(s))

	lastWasSpace := true
	for _, ch := range s {
		c := unicode.ToLower(ch)
		switch c {
		case '\u2019', '\u2018':
			c = '\''
		case '\u2013', '\u2014':
			c = '-'
		}

		if isWordRune(c) || isJoiner(c) {
			out.WriteRune(c)
			lastWasSpace = false
			continue
		}
		if !lastWasSpace {
			out.WriteByte(' ')
			lastWasSpace = true
		}
	}
	return strings.TrimSuffix(out.String(), " ")
}

// Tokens splits canonical text into words, trimming joiners at word edges
// ("react." -> "react", "/docs/" -> "docs").
func Tokens(canonical string) []string {
	fields := strings.Fields(canonical)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		for _, part := range strings.FieldsFunc(f, func(r rune) bool { return r == '/' }) {
			part = strings.TrimFunc(part, isJoiner)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
