package search

import (
	"context"
	"log/slog"

	"github.com/abrahaamv/ifinallywill-sub004/internal/errors"
	"github.com/abrahaamv/ifinallywill-sub004/internal/store"
)

// DocumentEmbedder batch-embeds document texts.
type DocumentEmbedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Indexer writes chunks into all three stores so the pipeline can
// retrieve them: the chunk store, the lexical index, and the vector
// index. Chunk ingestion itself (splitting documents into parent and
// child chunks) happens upstream; the indexer takes chunks as given.
type Indexer struct {
	chunks   store.ChunkStore
	lexical  store.LexicalIndex
	vectors  store.VectorStore
	embedder DocumentEmbedder
	logger   *slog.Logger
}

// NewIndexer wires an indexer.
func NewIndexer(chunks store.ChunkStore, lexical store.LexicalIndex, vectors store.VectorStore, embedder DocumentEmbedder, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		chunks:   chunks,
		lexical:  lexical,
		vectors:  vectors,
		embedder: embedder,
		logger:   logger,
	}
}

// Index stores and indexes a batch of chunks for one tenant. Only
// child and flat chunks are embedded and indexed for retrieval;
// parents exist to be expanded into, not matched directly.
func (ix *Indexer) Index(ctx context.Context, tenantID string, chunks []*store.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	for _, c := range chunks {
		if c.TenantID == "" {
			c.TenantID = tenantID
		} else if c.TenantID != tenantID {
			return errors.ValidationError("chunk tenant does not match index tenant", nil)
		}
	}

	if err := ix.chunks.Upsert(ctx, chunks); err != nil {
		return err
	}

	var retrievable []*store.Chunk
	for _, c := range chunks {
		if !isParent(c, chunks) {
			retrievable = append(retrievable, c)
		}
	}
	if len(retrievable) == 0 {
		return nil
	}

	docs := make([]*store.LexicalDocument, len(retrievable))
	texts := make([]string, len(retrievable))
	ids := make([]string, len(retrievable))
	for i, c := range retrievable {
		docs[i] = &store.LexicalDocument{ID: c.ID, TenantID: tenantID, Text: c.Text}
		texts[i] = c.Text
		ids[i] = c.ID
	}

	if err := ix.lexical.Index(ctx, docs); err != nil {
		return err
	}

	vectors, err := ix.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return errors.Wrap(errors.ErrCodeEmbedderUnavailable, err).WithStage("indexing")
	}
	if err := ix.vectors.Add(ctx, tenantID, ids, vectors); err != nil {
		return errors.Wrap(errors.ErrCodeStoreQuery, err).WithStage("indexing")
	}

	ix.logger.Info("chunks_indexed",
		slog.String("tenant_id", tenantID),
		slog.Int("total", len(chunks)),
		slog.Int("retrievable", len(retrievable)))

	return nil
}

// Delete removes chunks from all stores.
func (ix *Indexer) Delete(ctx context.Context, tenantID string, ids []string) error {
	if err := ix.chunks.Delete(ctx, tenantID, ids); err != nil {
		return err
	}
	if err := ix.lexical.Delete(ctx, tenantID, ids); err != nil {
		return err
	}
	return ix.vectors.Delete(ctx, tenantID, ids)
}

// isParent reports whether c is referenced as a parent by another
// chunk in the batch.
func isParent(c *store.Chunk, batch []*store.Chunk) bool {
	for _, other := range batch {
		if other.ParentID == c.ID {
			return true
		}
	}
	return false
}
