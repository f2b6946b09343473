package embed

import (
	"context"
)

// CachedQueryEmbedder layers a tenant-scoped query cache over an
// Embedder. Only query-mode embeddings are cached; document embeddings
// are one-shot during indexing and would only churn the cache.
type CachedQueryEmbedder struct {
	inner Embedder
	cache *QueryCache
}

// NewCachedQueryEmbedder wraps inner with the given cache.
func NewCachedQueryEmbedder(inner Embedder, cache *QueryCache) *CachedQueryEmbedder {
	return &CachedQueryEmbedder{inner: inner, cache: cache}
}

// EmbedQuery returns the tenant's cached embedding for query, or
// computes and caches it. The bool reports a cache hit.
func (c *CachedQueryEmbedder) EmbedQuery(ctx context.Context, tenantID, query string) ([]float32, bool, error) {
	if vec, ok := c.cache.Get(tenantID, query); ok {
		return vec, true, nil
	}

	vec, err := c.inner.Embed(ctx, query, ModeQuery)
	if err != nil {
		return nil, false, err
	}

	c.cache.Put(tenantID, query, vec)
	return vec, false, nil
}

// EmbedDocuments embeds document texts without touching the cache.
func (c *CachedQueryEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return c.inner.EmbedBatch(ctx, texts, ModeDocument)
}

// Dimensions returns the underlying embedding dimension.
func (c *CachedQueryEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

// Available reports whether the underlying embedder is reachable.
func (c *CachedQueryEmbedder) Available(ctx context.Context) bool {
	return c.inner.Available(ctx)
}

// Close closes the underlying embedder.
func (c *CachedQueryEmbedder) Close() error {
	return c.inner.Close()
}
