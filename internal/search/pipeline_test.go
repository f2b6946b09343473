package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abrahaamv/ifinallywill-sub004/internal/errors"
	"github.com/abrahaamv/ifinallywill-sub004/internal/store"
	"github.com/abrahaamv/ifinallywill-sub004/internal/telemetry"
)

// pipelineFixture wires a pipeline over in-memory stores.
type pipelineFixture struct {
	chunks   *memChunkStore
	lexical  *memLexicalIndex
	vectors  *memVectorStore
	embedder *stubQueryEmbedder
}

func newPipelineFixture(t *testing.T, opts ...PipelineOption) (*Pipeline, *pipelineFixture) {
	t.Helper()

	f := &pipelineFixture{
		chunks:   newMemChunkStore(),
		lexical:  newMemLexicalIndex(),
		vectors:  newMemVectorStore(),
		embedder: &stubQueryEmbedder{vec: []float32{1, 0, 0}},
	}

	retriever := NewDualRetriever(f.lexical, f.vectors, f.embedder, slog.Default())
	pipeline := NewPipeline(retriever, NewExpander(f.chunks), Config{}, opts...)
	return pipeline, f
}

func (f *pipelineFixture) index(t *testing.T, chunks ...*store.Chunk) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.chunks.Upsert(ctx, chunks))
	var docs []*store.LexicalDocument
	for _, c := range chunks {
		docs = append(docs, &store.LexicalDocument{ID: c.ID, TenantID: c.TenantID, Text: c.Text})
	}
	require.NoError(t, f.lexical.Index(ctx, docs))
}

func TestRetrieveContextEndToEnd(t *testing.T) {
	ctx := context.Background()

	t.Run("matching corpus yields bracketed context", func(t *testing.T) {
		pipeline, f := newPipelineFixture(t)
		f.index(t,
			&store.Chunk{ID: "a", TenantID: "acme", DocumentID: "d1", Text: "Refunds are issued within 14 days of purchase."},
			&store.Chunk{ID: "b", TenantID: "acme", DocumentID: "d1", Text: "Shipping is free above fifty dollars."},
		)

		resp, err := pipeline.RetrieveContext(ctx, "acme", "refunds purchase", Options{})
		require.NoError(t, err)

		require.NotEmpty(t, resp.Chunks)
		assert.True(t, strings.HasPrefix(resp.Context, "[1] "),
			"context must start with the first citation marker, got %q", resp.Context)
		assert.Equal(t, len(resp.Chunks), resp.TotalChunks)
		assert.Empty(t, resp.Degraded)
	})

	t.Run("empty tenant", func(t *testing.T) {
		pipeline, _ := newPipelineFixture(t)
		_, err := pipeline.RetrieveContext(ctx, "", "query", Options{})
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeUnknownTenant, errors.GetCode(err))
	})

	t.Run("blank query", func(t *testing.T) {
		pipeline, _ := newPipelineFixture(t)
		_, err := pipeline.RetrieveContext(ctx, "acme", "   ", Options{})
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeQueryEmpty, errors.GetCode(err))
	})

	t.Run("no hits return empty context, not error", func(t *testing.T) {
		pipeline, f := newPipelineFixture(t)
		f.index(t, &store.Chunk{ID: "a", TenantID: "acme", DocumentID: "d", Text: "unrelated content"})

		resp, err := pipeline.RetrieveContext(ctx, "acme", "quantum entanglement", Options{})
		require.NoError(t, err)
		assert.Empty(t, resp.Context)
		assert.Empty(t, resp.Chunks)
	})

	t.Run("embedder outage reported as degraded", func(t *testing.T) {
		pipeline, f := newPipelineFixture(t)
		f.index(t, &store.Chunk{ID: "a", TenantID: "acme", DocumentID: "d", Text: "refund policy details"})
		f.embedder.err = fmt.Errorf("embedder down")

		resp, err := pipeline.RetrieveContext(ctx, "acme", "refund policy", Options{})
		require.NoError(t, err)
		assert.Contains(t, resp.Degraded, "embedder")
		assert.NotEmpty(t, resp.Chunks, "lexical leg still serves results")
	})

	t.Run("tenants never see each other's chunks", func(t *testing.T) {
		pipeline, f := newPipelineFixture(t)
		f.index(t,
			&store.Chunk{ID: "a", TenantID: "acme", DocumentID: "d", Text: "acme refund policy"},
			&store.Chunk{ID: "g", TenantID: "globex", DocumentID: "d", Text: "globex refund policy"},
		)

		resp, err := pipeline.RetrieveContext(ctx, "acme", "refund policy", Options{})
		require.NoError(t, err)
		for _, c := range resp.Chunks {
			assert.NotEqual(t, "g", c.ID)
		}
	})

	t.Run("child hits come back as parent text", func(t *testing.T) {
		pipeline, f := newPipelineFixture(t)
		f.index(t,
			&store.Chunk{ID: "parent-1", TenantID: "acme", DocumentID: "d", Text: "Full refund section: windows, eligibility, exclusions."},
			&store.Chunk{ID: "child-1", TenantID: "acme", DocumentID: "d", ParentID: "parent-1", Text: "refund windows"},
		)
		// Keep the parent out of the searchable corpus, as the indexer does.
		require.NoError(t, f.lexical.Delete(ctx, "acme", []string{"parent-1"}))

		resp, err := pipeline.RetrieveContext(ctx, "acme", "refund windows", Options{})
		require.NoError(t, err)
		require.NotEmpty(t, resp.Chunks)
		assert.Equal(t, "parent-1", resp.Chunks[0].ID)
		assert.Contains(t, resp.Context, "Full refund section")
	})
}

func TestRetrieveContextReranking(t *testing.T) {
	ctx := context.Background()

	t.Run("reranker reorders results", func(t *testing.T) {
		reranker := &stubReranker{scores: []float64{0.4, 0.95}}
		pipeline, f := newPipelineFixture(t, WithReranker(reranker))
		f.index(t,
			&store.Chunk{ID: "a", TenantID: "acme", DocumentID: "d", Text: "refund refund refund details"},
			&store.Chunk{ID: "b", TenantID: "acme", DocumentID: "d", Text: "refund appendix"},
		)

		resp, err := pipeline.RetrieveContext(ctx, "acme", "refund", Options{})
		require.NoError(t, err)
		require.Len(t, resp.Chunks, 2)
		assert.Equal(t, "b", resp.Chunks[0].ID, "reranker score outranks fusion score")
		assert.Equal(t, 0.95, resp.Chunks[0].Score)
		assert.Equal(t, 1, reranker.calls)
	})

	t.Run("reranker failure keeps fusion order and flags degradation", func(t *testing.T) {
		reranker := &stubReranker{err: fmt.Errorf("service down")}
		pipeline, f := newPipelineFixture(t, WithReranker(reranker))
		f.index(t,
			&store.Chunk{ID: "a", TenantID: "acme", DocumentID: "d", Text: "refund refund refund details"},
			&store.Chunk{ID: "b", TenantID: "acme", DocumentID: "d", Text: "refund appendix"},
		)

		resp, err := pipeline.RetrieveContext(ctx, "acme", "refund", Options{})
		require.NoError(t, err)
		require.Len(t, resp.Chunks, 2)
		assert.Equal(t, "a", resp.Chunks[0].ID)
		assert.Contains(t, resp.Degraded, "reranker")
	})

	t.Run("DisableRerank skips the stage", func(t *testing.T) {
		reranker := &stubReranker{scores: []float64{0.1}}
		pipeline, f := newPipelineFixture(t, WithReranker(reranker))
		f.index(t, &store.Chunk{ID: "a", TenantID: "acme", DocumentID: "d", Text: "refund details"})

		_, err := pipeline.RetrieveContext(ctx, "acme", "refund", Options{DisableRerank: true})
		require.NoError(t, err)
		assert.Zero(t, reranker.calls)
	})
}

func TestRetrieveContextRecordsTelemetry(t *testing.T) {
	metrics := telemetry.NewQueryMetricsWithConfig(nil, telemetry.Config{FlushInterval: 0})
	defer metrics.Close()

	pipeline, f := newPipelineFixture(t, WithMetrics(metrics))
	f.index(t, &store.Chunk{ID: "a", TenantID: "acme", DocumentID: "d", Text: "refund details"})

	_, err := pipeline.RetrieveContext(context.Background(), "acme", "refund details", Options{})
	require.NoError(t, err)

	snap := metrics.Snapshot()
	assert.Equal(t, int64(1), snap.TotalQueries)
	assert.Equal(t, int64(1), snap.QueryTypes["conceptual"])
}
