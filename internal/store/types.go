// Package store provides persistence for chunks and the two retrieval
// indexes: a BM25 lexical index (SQLite FTS5 or Bleve) and an HNSW
// vector index. All stores are tenant-scoped.
package store

import (
	"context"
	"fmt"
	"time"
)

// Chunk is the unit of retrieval. A chunk belongs to exactly one tenant
// and one source document. Child chunks carry a ParentID pointing at the
// larger parent chunk they were split from.
type Chunk struct {
	ID         string            `json:"id"`
	TenantID   string            `json:"tenant_id"`
	DocumentID string            `json:"document_id"`
	ParentID   string            `json:"parent_id,omitempty"` // empty for parents and flat chunks
	Text       string            `json:"text"`
	TokenCount int               `json:"token_count"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// IsChild reports whether the chunk was split from a parent.
func (c *Chunk) IsChild() bool {
	return c.ParentID != ""
}

// ChunkStore persists chunks and answers parent lookups for
// hierarchical expansion.
type ChunkStore interface {
	// Upsert inserts or replaces chunks. Every child's ParentID must
	// reference a chunk already in the store or present in the same batch.
	Upsert(ctx context.Context, chunks []*Chunk) error

	// Get returns a chunk by ID, scoped to tenant.
	Get(ctx context.Context, tenantID, id string) (*Chunk, error)

	// GetMany returns the chunks for the given IDs. Missing IDs are
	// skipped, not errors.
	GetMany(ctx context.Context, tenantID string, ids []string) ([]*Chunk, error)

	// Delete removes chunks by ID. Deleting a parent also removes its children.
	Delete(ctx context.Context, tenantID string, ids []string) error

	// HasParents reports whether any chunk in the tenant has a parent,
	// i.e. whether the corpus is hierarchical.
	HasParents(ctx context.Context, tenantID string) (bool, error)

	// Count returns the number of chunks stored for the tenant.
	Count(ctx context.Context, tenantID string) (int, error)

	Close() error
}

// LexicalDocument is what lexical indexes ingest.
type LexicalDocument struct {
	ID       string
	TenantID string
	Text     string
}

// LexicalResult is a single BM25 hit.
type LexicalResult struct {
	ID           string
	Score        float64 // positive, higher = better
	MatchedTerms []string
}

// LexicalIndex is a tenant-scoped BM25 full-text index.
type LexicalIndex interface {
	Index(ctx context.Context, docs []*LexicalDocument) error
	Search(ctx context.Context, tenantID, query string, limit int) ([]*LexicalResult, error)
	Delete(ctx context.Context, tenantID string, ids []string) error
	Count(ctx context.Context, tenantID string) (int, error)
	Close() error
}

// LexicalBackend selects the lexical index implementation.
type LexicalBackend string

const (
	LexicalBackendSQLite LexicalBackend = "sqlite"
	LexicalBackendBleve  LexicalBackend = "bleve"
)

// LexicalConfig configures a lexical index.
type LexicalConfig struct {
	// StopWords filtered at index and query time. Defaults to
	// DefaultStopWords when nil.
	StopWords []string
}

// VectorResult is a single nearest-neighbor hit.
type VectorResult struct {
	ID       string
	Distance float32
	Score    float64 // similarity in [0,1], higher = better
}

// VectorStoreConfig configures the HNSW vector store.
type VectorStoreConfig struct {
	Dimensions int
	Metric     string // "cos" or "l2", defaults to "cos"
	M          int    // graph connectivity, defaults to 16
	EfSearch   int    // search beam width, defaults to 20
}

// VectorStore is a tenant-scoped approximate nearest neighbor index.
type VectorStore interface {
	Add(ctx context.Context, tenantID string, ids []string, vectors [][]float32) error
	Search(ctx context.Context, tenantID string, query []float32, k int) ([]*VectorResult, error)
	Delete(ctx context.Context, tenantID string, ids []string) error
	Count(tenantID string) int
	Close() error
}

// ErrDimensionMismatch is returned when a vector's dimensionality does
// not match the store configuration.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vector dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// DefaultStopWords are common English function words excluded from
// lexical matching. Kept short on purpose: BM25's IDF already
// downweights frequent terms, the list only trims index size.
var DefaultStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "but", "by",
	"for", "if", "in", "into", "is", "it", "no", "not", "of",
	"on", "or", "such", "that", "the", "their", "then", "there",
	"these", "they", "this", "to", "was", "will", "with",
}

// BuildStopWordMap converts a stop word list to a lookup set.
func BuildStopWordMap(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// FilterStopWords removes stop words from a token list.
func FilterStopWords(tokens []string, stopWords map[string]struct{}) []string {
	result := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, stop := stopWords[t]; !stop {
			result = append(result, t)
		}
	}
	return result
}
