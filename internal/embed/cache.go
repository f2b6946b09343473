package embed

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// DefaultCacheSize is the default number of query embeddings kept.
	// At 768 dims * 4 bytes * 4096 entries that is around 12MB.
	DefaultCacheSize = 4096

	// DefaultCacheTTL bounds staleness of cached query embeddings.
	DefaultCacheTTL = 24 * time.Hour
)

// QueryCache caches query embeddings per tenant with TTL-based expiry.
// The cache is advisory: callers treat misses and failed puts the same
// way, by computing the embedding.
type QueryCache struct {
	cache *expirable.LRU[string, []float32]
	model string
}

// NewQueryCache creates a cache for the given model's query embeddings.
// Entries expire after ttl; size bounds total entries across tenants.
func NewQueryCache(model string, size int, ttl time.Duration) *QueryCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &QueryCache{
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
		model: model,
	}
}

// normalizeQuery trims and collapses whitespace only. Case is
// preserved: embedding models are case-sensitive, so "US" and "us"
// must not share an entry.
func normalizeQuery(query string) string {
	return strings.Join(strings.Fields(query), " ")
}

// key hashes tenant, model, and the normalized query together so
// tenants can never observe each other's entries and model swaps
// invalidate naturally.
func (c *QueryCache) key(tenantID, query string) string {
	combined := tenantID + "\x00" + c.model + "\x00" + normalizeQuery(query)
	hash := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(hash[:])
}

// Get returns the cached embedding for the tenant's query, if any.
func (c *QueryCache) Get(tenantID, query string) ([]float32, bool) {
	return c.cache.Get(c.key(tenantID, query))
}

// Put stores an embedding for the tenant's query.
func (c *QueryCache) Put(tenantID, query string, vec []float32) {
	c.cache.Add(c.key(tenantID, query), vec)
}

// Len returns the number of live entries.
func (c *QueryCache) Len() int {
	return c.cache.Len()
}

// Purge drops all entries.
func (c *QueryCache) Purge() {
	c.cache.Purge()
}
