// Package telemetry collects lightweight retrieval metrics: query type
// mix, latency histogram, zero-context queries, cache hit rate, and
// degraded-stage counts. Aggregates live in memory and flush to SQLite
// periodically.
package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/abrahaamv/ifinallywill-sub004/internal/store"
)

// LatencyBucket is one histogram bucket.
type LatencyBucket string

const (
	BucketP50   LatencyBucket = "p50"   // <50ms
	BucketP200  LatencyBucket = "p200"  // 50-200ms
	BucketP500  LatencyBucket = "p500"  // 200-500ms
	BucketP2000 LatencyBucket = "p2000" // 500ms-2s
	BucketSlow  LatencyBucket = "slow"  // >=2s
)

// LatencyToBucket converts milliseconds to its histogram bucket.
func LatencyToBucket(ms int64) LatencyBucket {
	switch {
	case ms < 50:
		return BucketP50
	case ms < 200:
		return BucketP200
	case ms < 500:
		return BucketP500
	case ms < 2000:
		return BucketP2000
	default:
		return BucketSlow
	}
}

// QueryEvent is one retrieval recorded for telemetry.
type QueryEvent struct {
	Timestamp   time.Time
	TenantID    string
	Query       string
	QueryType   string // exact_match, technical, conversational, conceptual
	ResultCount int
	LatencyMs   int64
	CacheHit    bool
	Degraded    []string // stages that fell back, e.g. "embedder"
}

// IsZeroResult reports whether the query produced no context.
func (e QueryEvent) IsZeroResult() bool {
	return e.ResultCount == 0
}

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	items    []T
	head     int
	size     int
	capacity int
	mu       sync.RWMutex
}

// NewCircularBuffer creates a buffer with the given capacity.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add appends an item, evicting the oldest when full.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Items returns the buffer contents oldest first.
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 {
		return []T{}
	}

	result := make([]T, b.size)
	if b.size < b.capacity {
		copy(result, b.items[:b.size])
	} else {
		copy(result, b.items[b.head:])
		copy(result[b.capacity-b.head:], b.items[:b.head])
	}
	return result
}

// Size returns the current item count.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// TermCount pairs a query term with its frequency.
type TermCount struct {
	Term  string
	Count int64
}

// Snapshot is a point-in-time view of the collected metrics.
type Snapshot struct {
	TotalQueries      int64
	ZeroResultCount   int64
	CacheHits         int64
	QueryTypes        map[string]int64
	Latencies         map[LatencyBucket]int64
	DegradedStages    map[string]int64
	ZeroResultQueries []string
	TopTerms          []TermCount
	Since             time.Time
}

// ZeroResultPercentage returns the share of queries with no context.
func (s *Snapshot) ZeroResultPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalQueries) * 100
}

// CacheHitPercentage returns the embedding cache hit rate.
func (s *Snapshot) CacheHitPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(s.TotalQueries) * 100
}

// Config tunes the collector.
type Config struct {
	TopTermsCapacity    int           // max terms tracked (default 100)
	ZeroResultsCapacity int           // max zero-result queries kept (default 100)
	FlushInterval       time.Duration // store flush cadence (default 60s, 0 = manual)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TopTermsCapacity:    100,
		ZeroResultsCapacity: 100,
		FlushInterval:       60 * time.Second,
	}
}

// QueryMetrics collects retrieval telemetry. Safe for concurrent use.
type QueryMetrics struct {
	mu sync.RWMutex

	queryTypes      map[string]int64
	latencies       map[LatencyBucket]int64
	degradedStages  map[string]int64
	topTerms        *lru.Cache[string, int64]
	zeroResults     *CircularBuffer[string]
	totalQueries    int64
	zeroResultCount int64
	cacheHits       int64
	startTime       time.Time

	store       MetricsStore
	config      Config
	flushTicker *time.Ticker
	stopCh      chan struct{}
	closed      bool
}

// NewQueryMetrics creates a collector. A nil store keeps metrics
// in memory only.
func NewQueryMetrics(store MetricsStore) *QueryMetrics {
	return NewQueryMetricsWithConfig(store, DefaultConfig())
}

// NewQueryMetricsWithConfig creates a collector with custom settings.
func NewQueryMetricsWithConfig(store MetricsStore, cfg Config) *QueryMetrics {
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = 100
	}
	if cfg.ZeroResultsCapacity <= 0 {
		cfg.ZeroResultsCapacity = 100
	}

	topTerms, _ := lru.New[string, int64](cfg.TopTermsCapacity)

	m := &QueryMetrics{
		queryTypes:     make(map[string]int64),
		latencies:      make(map[LatencyBucket]int64),
		degradedStages: make(map[string]int64),
		topTerms:       topTerms,
		zeroResults:    NewCircularBuffer[string](cfg.ZeroResultsCapacity),
		startTime:      time.Now(),
		store:          store,
		config:         cfg,
		stopCh:         make(chan struct{}),
	}

	if cfg.FlushInterval > 0 && store != nil {
		m.flushTicker = time.NewTicker(cfg.FlushInterval)
		go m.flushLoop()
	}

	return m
}

func (m *QueryMetrics) flushLoop() {
	for {
		select {
		case <-m.flushTicker.C:
			_ = m.Flush()
		case <-m.stopCh:
			return
		}
	}
}

// Record captures one retrieval. Non-blocking and thread-safe.
func (m *QueryMetrics) Record(event QueryEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	m.queryTypes[event.QueryType]++
	m.totalQueries++
	if event.CacheHit {
		m.cacheHits++
	}
	for _, stage := range event.Degraded {
		m.degradedStages[stage]++
	}

	for _, term := range ExtractTerms(event.Query) {
		count, _ := m.topTerms.Get(term)
		m.topTerms.Add(term, count+1)
	}

	if event.IsZeroResult() {
		m.zeroResults.Add(event.Query)
		m.zeroResultCount++
	}

	m.latencies[LatencyToBucket(event.LatencyMs)]++
}

// Snapshot returns a copy of the current aggregates.
func (m *QueryMetrics) Snapshot() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := &Snapshot{
		TotalQueries:      m.totalQueries,
		ZeroResultCount:   m.zeroResultCount,
		CacheHits:         m.cacheHits,
		QueryTypes:        make(map[string]int64, len(m.queryTypes)),
		Latencies:         make(map[LatencyBucket]int64, len(m.latencies)),
		DegradedStages:    make(map[string]int64, len(m.degradedStages)),
		ZeroResultQueries: m.zeroResults.Items(),
		Since:             m.startTime,
	}
	for k, v := range m.queryTypes {
		snap.QueryTypes[k] = v
	}
	for k, v := range m.latencies {
		snap.Latencies[k] = v
	}
	for k, v := range m.degradedStages {
		snap.DegradedStages[k] = v
	}
	for _, term := range m.topTerms.Keys() {
		if count, ok := m.topTerms.Get(term); ok {
			snap.TopTerms = append(snap.TopTerms, TermCount{Term: term, Count: count})
		}
	}
	return snap
}

// Flush persists current aggregates to the store.
func (m *QueryMetrics) Flush() error {
	m.mu.RLock()
	store := m.store
	m.mu.RUnlock()
	if store == nil {
		return nil
	}

	snap := m.Snapshot()
	date := time.Now().Format("2006-01-02")

	if err := store.SaveQueryTypeCounts(date, snap.QueryTypes); err != nil {
		return err
	}
	if err := store.SaveLatencyCounts(date, snap.Latencies); err != nil {
		return err
	}
	terms := make(map[string]int64, len(snap.TopTerms))
	for _, tc := range snap.TopTerms {
		terms[tc.Term] = tc.Count
	}
	if err := store.UpsertTermCounts(terms); err != nil {
		return err
	}
	for _, q := range snap.ZeroResultQueries {
		if err := store.AddZeroResultQuery(q, time.Now()); err != nil {
			return err
		}
	}
	return nil
}

// Close stops the flush loop and flushes one last time.
func (m *QueryMetrics) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	if m.flushTicker != nil {
		m.flushTicker.Stop()
	}
	close(m.stopCh)
	m.mu.Unlock()

	return m.Flush()
}

// ExtractTerms pulls lowercase terms of 3+ characters from a query for
// the top-terms aggregate.
func ExtractTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?:;\"'()[]")
		if len(f) >= 3 {
			terms = append(terms, f)
		}
	}
	return terms
}

// HashQuery creates a short stable hash of a normalized query, for
// logging queries without recording their text. Case and whitespace
// variants of the same query hash alike.
func HashQuery(query string) string {
	hash := sha256.Sum256([]byte(store.NormalizeText(query)))
	return hex.EncodeToString(hash[:16])
}
