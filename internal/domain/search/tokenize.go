package search

import (
	"strings"
	"unicode"
)

// Tokenize splits s into lowercase runs of Unicode letters and digits.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
