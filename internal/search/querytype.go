package search

import (
	"regexp"
	"strings"
)

// QueryType drives the alpha weighting of the weighted fusion
// algorithm: exact-looking queries lean lexical, conversational ones
// lean semantic.
type QueryType string

const (
	QueryTypeExactMatch     QueryType = "exact_match"
	QueryTypeTechnical      QueryType = "technical"
	QueryTypeConversational QueryType = "conversational"
	QueryTypeConceptual     QueryType = "conceptual"
)

// identifierPattern matches all-caps or alphanumeric-with-dashes
// tokens like "SKU-1234" or "ERR42".
var identifierPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]*$`)

var exactMatchMarkers = []string{"error", "code", "sku"}

var technicalVerbs = []string{
	"configure", "debug", "install", "deploy", "integrate",
	"migrate", "upgrade", "restart", "authenticate", "compile",
}

var conversationalMarkers = []string{"how", "help", "trouble"}

// ClassifyQueryType applies simple rule checks in priority order:
// exact-looking identifiers first, then technical verbs, then
// conversational markers, defaulting to conceptual.
func ClassifyQueryType(query string) QueryType {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return QueryTypeConceptual
	}

	fields := strings.Fields(trimmed)
	lower := strings.ToLower(trimmed)

	for _, f := range fields {
		if len(f) >= 2 && identifierPattern.MatchString(f) {
			return QueryTypeExactMatch
		}
	}
	for _, marker := range exactMatchMarkers {
		if containsWord(lower, marker) {
			return QueryTypeExactMatch
		}
	}

	for _, verb := range technicalVerbs {
		if containsWord(lower, verb) {
			return QueryTypeTechnical
		}
	}

	for _, marker := range conversationalMarkers {
		if containsWord(lower, marker) {
			return QueryTypeConversational
		}
	}

	return QueryTypeConceptual
}

// AlphaFor returns the semantic weight for weighted fusion. Low alpha
// favors the lexical list, high alpha the vector list.
func AlphaFor(qt QueryType) float64 {
	switch qt {
	case QueryTypeExactMatch:
		return 0.2
	case QueryTypeTechnical:
		return 0.5
	case QueryTypeConceptual:
		return 0.6
	case QueryTypeConversational:
		return 0.8
	default:
		return 0.6
	}
}

// containsWord reports whether text contains word as a whole token.
func containsWord(text, word string) bool {
	for _, f := range strings.FieldsFunc(text, func(r rune) bool {
		return !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9')
	}) {
		if f == word {
			return true
		}
	}
	return false
}
