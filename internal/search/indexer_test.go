package search

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abrahaamv/ifinallywill-sub004/internal/store"
)

func TestIndexer(t *testing.T) {
	ctx := context.Background()

	newIndexer := func() (*Indexer, *memChunkStore, *memLexicalIndex, *memVectorStore) {
		chunks := newMemChunkStore()
		lex := newMemLexicalIndex()
		vec := newMemVectorStore()
		ix := NewIndexer(chunks, lex, vec, &stubDocEmbedder{}, slog.Default())
		return ix, chunks, lex, vec
	}

	t.Run("parents are stored but not searchable", func(t *testing.T) {
		ix, chunks, lex, vec := newIndexer()

		err := ix.Index(ctx, "acme", []*store.Chunk{
			{ID: "parent-1", DocumentID: "d", Text: "full section"},
			{ID: "child-1", DocumentID: "d", ParentID: "parent-1", Text: "small piece"},
			{ID: "flat-1", DocumentID: "d", Text: "standalone"},
		})
		require.NoError(t, err)

		total, err := chunks.Count(ctx, "acme")
		require.NoError(t, err)
		assert.Equal(t, 3, total, "all chunks land in the chunk store")

		searchable, err := lex.Count(ctx, "acme")
		require.NoError(t, err)
		assert.Equal(t, 2, searchable, "only children and flat chunks are indexed")
		assert.ElementsMatch(t, []string{"child-1", "flat-1"}, vec.added["acme"])
	})

	t.Run("fills missing tenant, rejects mismatched one", func(t *testing.T) {
		ix, chunks, _, _ := newIndexer()

		err := ix.Index(ctx, "acme", []*store.Chunk{
			{ID: "a", DocumentID: "d", Text: "text"},
		})
		require.NoError(t, err)
		c, err := chunks.Get(ctx, "acme", "a")
		require.NoError(t, err)
		assert.Equal(t, "acme", c.TenantID)

		err = ix.Index(ctx, "acme", []*store.Chunk{
			{ID: "b", TenantID: "globex", DocumentID: "d", Text: "text"},
		})
		assert.Error(t, err)
	})

	t.Run("embedder failure aborts indexing", func(t *testing.T) {
		chunks := newMemChunkStore()
		ix := NewIndexer(chunks, newMemLexicalIndex(), newMemVectorStore(),
			&stubDocEmbedder{err: assert.AnError}, slog.Default())

		err := ix.Index(ctx, "acme", []*store.Chunk{
			{ID: "a", DocumentID: "d", Text: "text"},
		})
		assert.Error(t, err, "documents must not be half-indexed silently")
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		ix, _, _, _ := newIndexer()
		assert.NoError(t, ix.Index(ctx, "acme", nil))
	})

	t.Run("delete removes from all stores", func(t *testing.T) {
		ix, chunks, lex, _ := newIndexer()
		require.NoError(t, ix.Index(ctx, "acme", []*store.Chunk{
			{ID: "a", DocumentID: "d", Text: "text"},
		}))

		require.NoError(t, ix.Delete(ctx, "acme", []string{"a"}))
		total, _ := chunks.Count(ctx, "acme")
		assert.Zero(t, total)
		searchable, _ := lex.Count(ctx, "acme")
		assert.Zero(t, searchable)
	})
}
