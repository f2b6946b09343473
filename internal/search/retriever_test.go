package search

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abrahaamv/ifinallywill-sub004/internal/errors"
	"github.com/abrahaamv/ifinallywill-sub004/internal/store"
)

func TestDualRetriever(t *testing.T) {
	ctx := context.Background()

	indexDocs := func(t *testing.T, lex *memLexicalIndex) {
		t.Helper()
		require.NoError(t, lex.Index(ctx, []*store.LexicalDocument{
			{ID: "a", TenantID: "acme", Text: "refund policy details"},
			{ID: "b", TenantID: "acme", Text: "shipping rates"},
		}))
	}

	t.Run("returns both lists", func(t *testing.T) {
		lex := newMemLexicalIndex()
		indexDocs(t, lex)
		vec := newMemVectorStore()
		vec.results["acme"] = vecHits("b", 0.9, "a", 0.7)

		r := NewDualRetriever(lex, vec, &stubQueryEmbedder{vec: []float32{1, 0, 0}, cacheHit: true}, slog.Default())
		lists, err := r.Retrieve(ctx, "acme", "refund policy", 10)
		require.NoError(t, err)

		assert.Len(t, lists.Lexical, 1)
		assert.Equal(t, "a", lists.Lexical[0].ID)
		assert.Len(t, lists.Vector, 2)
		assert.True(t, lists.CacheHit)
		assert.False(t, lists.EmbedderDegraded)
	})

	t.Run("embedder failure degrades to lexical only", func(t *testing.T) {
		lex := newMemLexicalIndex()
		indexDocs(t, lex)
		vec := newMemVectorStore()
		vec.results["acme"] = vecHits("b", 0.9)

		r := NewDualRetriever(lex, vec, &stubQueryEmbedder{err: fmt.Errorf("embedder down")}, slog.Default())
		lists, err := r.Retrieve(ctx, "acme", "refund policy", 10)
		require.NoError(t, err, "embedder outage must not fail retrieval")

		assert.True(t, lists.EmbedderDegraded)
		assert.Empty(t, lists.Vector)
		assert.NotEmpty(t, lists.Lexical)
	})

	t.Run("lexical store failure is terminal", func(t *testing.T) {
		lex := newMemLexicalIndex()
		lex.err = fmt.Errorf("disk gone")
		vec := newMemVectorStore()

		r := NewDualRetriever(lex, vec, &stubQueryEmbedder{vec: []float32{1, 0, 0}}, slog.Default())
		_, err := r.Retrieve(ctx, "acme", "refund policy", 10)
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeRetrievalFailed, errors.GetCode(err))
	})

	t.Run("vector store failure is terminal", func(t *testing.T) {
		lex := newMemLexicalIndex()
		indexDocs(t, lex)
		vec := newMemVectorStore()
		vec.err = fmt.Errorf("graph corrupt")

		r := NewDualRetriever(lex, vec, &stubQueryEmbedder{vec: []float32{1, 0, 0}}, slog.Default())
		_, err := r.Retrieve(ctx, "acme", "refund policy", 10)
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeRetrievalFailed, errors.GetCode(err))
	})
}
