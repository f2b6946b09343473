package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/abrahaamv/ifinallywill-sub004/internal/store"
)

// In-memory fakes so pipeline tests can inject failures precisely.

type memChunkStore struct {
	chunks      map[string]map[string]*store.Chunk // tenant -> id -> chunk
	failGetMany bool
}

func newMemChunkStore() *memChunkStore {
	return &memChunkStore{chunks: make(map[string]map[string]*store.Chunk)}
}

func (s *memChunkStore) Upsert(_ context.Context, chunks []*store.Chunk) error {
	for _, c := range chunks {
		if s.chunks[c.TenantID] == nil {
			s.chunks[c.TenantID] = make(map[string]*store.Chunk)
		}
		s.chunks[c.TenantID][c.ID] = c
	}
	return nil
}

func (s *memChunkStore) Get(_ context.Context, tenantID, id string) (*store.Chunk, error) {
	c, ok := s.chunks[tenantID][id]
	if !ok {
		return nil, fmt.Errorf("chunk %s not found", id)
	}
	return c, nil
}

func (s *memChunkStore) GetMany(_ context.Context, tenantID string, ids []string) ([]*store.Chunk, error) {
	if s.failGetMany {
		return nil, fmt.Errorf("chunk store unavailable")
	}
	var out []*store.Chunk
	for _, id := range ids {
		if c, ok := s.chunks[tenantID][id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memChunkStore) Delete(_ context.Context, tenantID string, ids []string) error {
	for _, id := range ids {
		delete(s.chunks[tenantID], id)
		for cid, c := range s.chunks[tenantID] {
			if c.ParentID == id {
				delete(s.chunks[tenantID], cid)
			}
		}
	}
	return nil
}

func (s *memChunkStore) HasParents(_ context.Context, tenantID string) (bool, error) {
	for _, c := range s.chunks[tenantID] {
		if c.IsChild() {
			return true, nil
		}
	}
	return false, nil
}

func (s *memChunkStore) Count(_ context.Context, tenantID string) (int, error) {
	return len(s.chunks[tenantID]), nil
}

func (s *memChunkStore) Close() error { return nil }

type memLexicalIndex struct {
	docs map[string]map[string]string // tenant -> id -> text
	err  error
}

func newMemLexicalIndex() *memLexicalIndex {
	return &memLexicalIndex{docs: make(map[string]map[string]string)}
}

func (ix *memLexicalIndex) Index(_ context.Context, docs []*store.LexicalDocument) error {
	for _, d := range docs {
		if ix.docs[d.TenantID] == nil {
			ix.docs[d.TenantID] = make(map[string]string)
		}
		ix.docs[d.TenantID][d.ID] = d.Text
	}
	return nil
}

// Search counts query-term occurrences, a stand-in for BM25 that keeps
// ordering deterministic.
func (ix *memLexicalIndex) Search(_ context.Context, tenantID, query string, limit int) ([]*store.LexicalResult, error) {
	if ix.err != nil {
		return nil, ix.err
	}
	terms := strings.Fields(strings.ToLower(query))
	var hits []*store.LexicalResult
	for id, text := range ix.docs[tenantID] {
		lower := strings.ToLower(text)
		score := 0.0
		var matched []string
		for _, t := range terms {
			if n := strings.Count(lower, t); n > 0 {
				score += float64(n)
				matched = append(matched, t)
			}
		}
		if score > 0 {
			hits = append(hits, &store.LexicalResult{ID: id, Score: score, MatchedTerms: matched})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (ix *memLexicalIndex) Delete(_ context.Context, tenantID string, ids []string) error {
	for _, id := range ids {
		delete(ix.docs[tenantID], id)
	}
	return nil
}

func (ix *memLexicalIndex) Count(_ context.Context, tenantID string) (int, error) {
	return len(ix.docs[tenantID]), nil
}

func (ix *memLexicalIndex) Close() error { return nil }

type memVectorStore struct {
	results map[string][]*store.VectorResult // tenant -> canned results
	err     error
	added   map[string][]string // tenant -> ids added
}

func newMemVectorStore() *memVectorStore {
	return &memVectorStore{
		results: make(map[string][]*store.VectorResult),
		added:   make(map[string][]string),
	}
}

func (s *memVectorStore) Add(_ context.Context, tenantID string, ids []string, _ [][]float32) error {
	s.added[tenantID] = append(s.added[tenantID], ids...)
	return nil
}

func (s *memVectorStore) Search(_ context.Context, tenantID string, _ []float32, k int) ([]*store.VectorResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	hits := s.results[tenantID]
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (s *memVectorStore) Delete(_ context.Context, tenantID string, ids []string) error { return nil }

func (s *memVectorStore) Count(tenantID string) int { return len(s.added[tenantID]) }

func (s *memVectorStore) Close() error { return nil }

type stubQueryEmbedder struct {
	vec      []float32
	cacheHit bool
	err      error
}

func (e *stubQueryEmbedder) EmbedQuery(_ context.Context, _, _ string) ([]float32, bool, error) {
	if e.err != nil {
		return nil, false, e.err
	}
	return e.vec, e.cacheHit, nil
}

type stubDocEmbedder struct {
	err error
}

func (e *stubDocEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = []float32{1, 0, 0}
	}
	return vecs, nil
}

type stubReranker struct {
	scores []float64
	err    error
	calls  int
}

func (r *stubReranker) Rerank(_ context.Context, _ string, docs []string) ([]float64, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	if len(r.scores) != len(docs) {
		return nil, fmt.Errorf("stub has %d scores for %d docs", len(r.scores), len(docs))
	}
	return r.scores, nil
}

func (r *stubReranker) Available(_ context.Context) bool { return r.err == nil }

func (r *stubReranker) Close() error { return nil }

// lexHits builds a lexical result list from id/score pairs.
func lexHits(pairs ...any) []*store.LexicalResult {
	var out []*store.LexicalResult
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, &store.LexicalResult{
			ID:    pairs[i].(string),
			Score: pairs[i+1].(float64),
		})
	}
	return out
}

// vecHits builds a vector result list from id/score pairs.
func vecHits(pairs ...any) []*store.VectorResult {
	var out []*store.VectorResult
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, &store.VectorResult{
			ID:    pairs[i].(string),
			Score: pairs[i+1].(float64),
		})
	}
	return out
}
