package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// HNSWStore implements VectorStore using coder/hnsw, a pure Go HNSW
// implementation. Each tenant gets its own graph so nearest-neighbor
// search can never cross tenant boundaries.
type HNSWStore struct {
	mu     sync.RWMutex
	graphs map[string]*tenantGraph
	config VectorStoreConfig
	closed bool
}

var _ VectorStore = (*HNSWStore)(nil)

// tenantGraph is one tenant's HNSW graph plus its string <-> uint64
// ID mappings.
type tenantGraph struct {
	graph   *hnsw.Graph[uint64]
	idMap   map[string]uint64 // chunk ID -> internal key
	keyMap  map[uint64]string // internal key -> chunk ID
	nextKey uint64
}

// hnswMetadata stores ID mappings for persistence.
type hnswMetadata struct {
	IDMap   map[string]uint64
	NextKey uint64
	Config  VectorStoreConfig
}

// NewHNSWStore creates an empty multi-tenant vector store.
func NewHNSWStore(cfg VectorStoreConfig) (*HNSWStore, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("vector store requires positive dimensions, got %d", cfg.Dimensions)
	}
	if cfg.Metric == "" {
		cfg.Metric = "cos"
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	return &HNSWStore{
		graphs: make(map[string]*tenantGraph),
		config: cfg,
	}, nil
}

func (s *HNSWStore) newGraph() *hnsw.Graph[uint64] {
	graph := hnsw.NewGraph[uint64]()
	switch s.config.Metric {
	case "l2":
		graph.Distance = hnsw.EuclideanDistance
	default:
		graph.Distance = hnsw.CosineDistance
	}
	graph.M = s.config.M
	graph.EfSearch = s.config.EfSearch
	graph.Ml = 0.25
	return graph
}

// graphFor returns the tenant's graph, creating it if needed.
// Caller must hold the write lock.
func (s *HNSWStore) graphFor(tenantID string) *tenantGraph {
	g, ok := s.graphs[tenantID]
	if !ok {
		g = &tenantGraph{
			graph:  s.newGraph(),
			idMap:  make(map[string]uint64),
			keyMap: make(map[uint64]string),
		}
		s.graphs[tenantID] = g
	}
	return g
}

// Add inserts vectors for the tenant. Existing IDs are updated via
// lazy deletion: the old graph node is orphaned rather than removed,
// which sidesteps coder/hnsw breaking when the last node is deleted.
func (s *HNSWStore) Add(ctx context.Context, tenantID string, ids []string, vectors [][]float32) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	for _, v := range vectors {
		if len(v) != s.config.Dimensions {
			return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(v)}
		}
	}

	g := s.graphFor(tenantID)

	for i, id := range ids {
		if existingKey, exists := g.idMap[id]; exists {
			delete(g.keyMap, existingKey) // orphan the old node
			delete(g.idMap, id)
		}

		key := g.nextKey
		g.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		if s.config.Metric == "cos" {
			normalizeVectorInPlace(vec)
		}

		node := hnsw.MakeNode(key, vec)
		g.graph.Add(node)

		g.idMap[id] = key
		g.keyMap[key] = id
	}

	return nil
}

// Search finds the k nearest neighbors to query within the tenant.
func (s *HNSWStore) Search(ctx context.Context, tenantID string, query []float32, k int) ([]*VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("vector store is closed")
	}

	if len(query) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(query)}
	}

	g, ok := s.graphs[tenantID]
	if !ok || g.graph.Len() == 0 {
		return []*VectorResult{}, nil
	}

	normalizedQuery := make([]float32, len(query))
	copy(normalizedQuery, query)
	if s.config.Metric == "cos" {
		normalizeVectorInPlace(normalizedQuery)
	}

	// Over-fetch to compensate for lazy-deleted orphans in the graph.
	orphans := g.graph.Len() - len(g.idMap)
	nodes := g.graph.Search(normalizedQuery, k+orphans)

	results := make([]*VectorResult, 0, k)
	for _, node := range nodes {
		id, exists := g.keyMap[node.Key]
		if !exists {
			continue // lazy-deleted node
		}

		distance := g.graph.Distance(normalizedQuery, node.Value)
		score := distanceToScore(distance, s.config.Metric)

		results = append(results, &VectorResult{
			ID:       id,
			Distance: distance,
			Score:    float64(score),
		})
		if len(results) == k {
			break
		}
	}

	return results, nil
}

// Delete removes vectors by ID using lazy deletion.
func (s *HNSWStore) Delete(ctx context.Context, tenantID string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	g, ok := s.graphs[tenantID]
	if !ok {
		return nil
	}

	for _, id := range ids {
		if key, exists := g.idMap[id]; exists {
			delete(g.keyMap, key)
			delete(g.idMap, id)
		}
	}

	return nil
}

// Count returns the number of active vectors for the tenant.
func (s *HNSWStore) Count(tenantID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0
	}
	g, ok := s.graphs[tenantID]
	if !ok {
		return 0
	}
	return len(g.idMap)
}

// Tenants returns the tenant IDs with at least one vector.
func (s *HNSWStore) Tenants() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tenants := make([]string, 0, len(s.graphs))
	for t, g := range s.graphs {
		if len(g.idMap) > 0 {
			tenants = append(tenants, t)
		}
	}
	return tenants
}

// Save persists all tenant graphs under dir, one index file plus one
// metadata file per tenant. Writes are atomic (temp file + rename).
func (s *HNSWStore) Save(dir string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	for tenantID, g := range s.graphs {
		path := filepath.Join(dir, tenantID+".hnsw")
		if err := saveGraph(path, g, s.config); err != nil {
			return fmt.Errorf("failed to save tenant %s: %w", tenantID, err)
		}
	}

	return nil
}

func saveGraph(path string, g *tenantGraph, cfg VectorStoreConfig) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}

	if err := g.graph.Export(file); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename index file: %w", err)
	}

	metaPath := path + ".meta"
	tmpMeta := metaPath + ".tmp"
	metaFile, err := os.Create(tmpMeta)
	if err != nil {
		return fmt.Errorf("create metadata file: %w", err)
	}

	meta := hnswMetadata{IDMap: g.idMap, NextKey: g.nextKey, Config: cfg}
	if err := gob.NewEncoder(metaFile).Encode(meta); err != nil {
		metaFile.Close()
		os.Remove(tmpMeta)
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := metaFile.Close(); err != nil {
		os.Remove(tmpMeta)
		return fmt.Errorf("close metadata file: %w", err)
	}
	return os.Rename(tmpMeta, metaPath)
}

// Load restores all tenant graphs found under dir.
func (s *HNSWStore) Load(dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil // nothing persisted yet
	}
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".hnsw" {
			continue
		}
		tenantID := name[:len(name)-len(".hnsw")]
		path := filepath.Join(dir, name)

		g, err := loadGraph(path, s)
		if err != nil {
			return fmt.Errorf("failed to load tenant %s: %w", tenantID, err)
		}
		s.graphs[tenantID] = g
	}

	return nil
}

func loadGraph(path string, s *HNSWStore) (*tenantGraph, error) {
	metaFile, err := os.Open(path + ".meta")
	if err != nil {
		return nil, fmt.Errorf("open metadata file: %w", err)
	}
	defer metaFile.Close()

	var meta hnswMetadata
	if err := gob.NewDecoder(metaFile).Decode(&meta); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if meta.Config.Dimensions != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: meta.Config.Dimensions}
	}

	g := &tenantGraph{
		graph:   s.newGraph(),
		idMap:   meta.IDMap,
		keyMap:  make(map[uint64]string, len(meta.IDMap)),
		nextKey: meta.NextKey,
	}
	for id, key := range meta.IDMap {
		g.keyMap[key] = id
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index file: %w", err)
	}
	defer file.Close()

	// coder/hnsw Import requires io.ByteReader
	reader := bufio.NewReader(file)
	if err := g.graph.Import(reader); err != nil {
		return nil, fmt.Errorf("import graph: %w", err)
	}

	return g, nil
}

// Close marks the store closed. Graphs are in-memory, call Save first
// to persist.
func (s *HNSWStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.graphs = nil
	return nil
}

// normalizeVectorInPlace scales v to unit length.
func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	invMagnitude := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= invMagnitude
	}
}

// distanceToScore converts a distance to a similarity score in [0,1].
func distanceToScore(distance float32, metric string) float32 {
	switch metric {
	case "cos":
		// cosine distance ranges 0 (identical) to 2 (opposite)
		return 1.0 - distance/2.0
	case "l2":
		return 1.0 / (1.0 + distance)
	default:
		return 1.0 - distance/2.0
	}
}
