// Package embed turns text into dense vectors via a remote embedding
// service, with tenant-scoped query caching layered on top.
package embed

import (
	"context"
	"math"
	"time"
)

// Mode selects the embedding task. Asymmetric models produce different
// vectors for queries and documents.
type Mode string

const (
	ModeQuery    Mode = "query"
	ModeDocument Mode = "document"
)

const (
	// MaxBatchSize caps one EmbedBatch call (prevents memory exhaustion).
	MaxBatchSize = 256

	// DefaultBatchSize is the default batch size for embedding requests.
	DefaultBatchSize = 32

	// DefaultTimeout is the default per-request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the default number of attempts per request.
	DefaultMaxRetries = 3

	// DefaultDimensions matches the default embedding model.
	DefaultDimensions = 768

	// DefaultRatePerSecond bounds requests to the embedding service.
	DefaultRatePerSecond = 20
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string, mode Mode) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts. Batches
	// larger than MaxBatchSize are rejected.
	EmbedBatch(ctx context.Context, texts []string, mode Mode) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available checks if the embedder is ready.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// normalizeVector normalizes a vector to unit length.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
