// Package search implements the hybrid retrieval pipeline: concurrent
// lexical and vector search, rank fusion, small-to-big hierarchical
// expansion, optional cross-encoder reranking, and context assembly.
package search

// RetrievalResult is one ranked passage produced for a query. Results
// are request-scoped values, never persisted.
type RetrievalResult struct {
	ID         string            `json:"id"`
	Score      float64           `json:"score"`
	Text       string            `json:"text"`
	DocumentID string            `json:"document_id"`
	Metadata   map[string]string `json:"metadata,omitempty"`

	// Confidence buckets the score for observability: high, medium, low.
	Confidence string `json:"confidence"`
}

// Confidence buckets.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// confidenceFor buckets a score.
func confidenceFor(score float64) string {
	switch {
	case score >= 0.8:
		return ConfidenceHigh
	case score >= 0.6:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Response is what RetrieveContext hands back to callers.
type Response struct {
	// Context is the rendered "[i] text" block, empty when nothing
	// survives filtering.
	Context string `json:"context"`

	// Chunks are the surviving results in rank order.
	Chunks []*RetrievalResult `json:"chunks"`

	// TotalChunks is len(Chunks).
	TotalChunks int `json:"total_chunks"`

	// ProcessingTimeMs is wall time for the whole pipeline.
	ProcessingTimeMs int64 `json:"processing_time_ms"`

	// Degraded lists stages that fell back (embedder, reranker) so
	// callers can surface reduced-quality results.
	Degraded []string `json:"degraded,omitempty"`
}

// Metadata keys attached during expansion.
const (
	metaExpansion  = "expansion" // "parent" or "direct"
	metaChildID    = "child_id"
	metaChildScore = "child_score"
)
