package store

import (
	"regexp"
	"strings"
)

// tokenRegex matches alphanumeric word sequences.
var tokenRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

// Tokenize splits natural-language text into lowercase word tokens.
// Single-character tokens are dropped except digits, which can be
// meaningful in queries ("error 503", "v2").
func Tokenize(text string) []string {
	words := tokenRegex.FindAllString(text, -1)

	tokens := make([]string, 0, len(words))
	for _, w := range words {
		lower := strings.ToLower(w)
		if len(lower) >= 2 || (len(lower) == 1 && lower[0] >= '0' && lower[0] <= '9') {
			tokens = append(tokens, lower)
		}
	}
	return tokens
}

// NormalizeText collapses whitespace and lowercases text, so that
// trivially different phrasings of the same query dedupe together in
// telemetry and logs.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
