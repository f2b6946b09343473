package search

import (
	"fmt"
	"sort"
	"strings"
)

// Assemble filters results by the score floor, keeps the first topK,
// and renders the numbered context block. Zero survivors produce an
// empty context string, never an error, so the caller can branch to a
// context-free prompt.
func Assemble(results []*RetrievalResult, minScore float64, topK int) (string, []*RetrievalResult) {
	kept := make([]*RetrievalResult, 0, topK)
	for _, r := range results {
		if r.Score < minScore {
			continue
		}
		kept = append(kept, r)
		if len(kept) == topK {
			break
		}
	}

	if len(kept) == 0 {
		return "", kept
	}

	blocks := make([]string, len(kept))
	for i, r := range kept {
		blocks[i] = fmt.Sprintf("[%d] %s", i+1, r.Text)
	}
	return strings.Join(blocks, "\n\n"), kept
}

// sortResults orders by score descending with id tie-break.
func sortResults(results []*RetrievalResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
}
