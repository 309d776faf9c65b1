package domain

import (
	"strings"
	"unicode"
)

// Tokenize splits text into lower-cased runs of letters and digits.
// Repeated tokens are kept so callers can count term frequencies.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// UniqueTokens tokenizes text and drops repeats, preserving first-seen order
func UniqueTokens(text string) []string {
	tokens := Tokenize(text)
	seen := make(map[string]bool, len(tokens))
	out := tokens[:0]
	for _, t := range tokens {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
