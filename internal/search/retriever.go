package search

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/abrahaamv/ifinallywill-sub004/internal/embed"
	"github.com/abrahaamv/ifinallywill-sub004/internal/errors"
	"github.com/abrahaamv/ifinallywill-sub004/internal/store"
)

// QueryEmbedder produces a query embedding, possibly from cache.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, tenantID, query string) (vec []float32, cacheHit bool, err error)
}

var _ QueryEmbedder = (*embed.CachedQueryEmbedder)(nil)

// DualRetriever runs the lexical and vector searches concurrently.
// When the embedder is unavailable the vector leg degrades to an empty
// list; a lexical (store) failure is terminal.
type DualRetriever struct {
	lexical  store.LexicalIndex
	vectors  store.VectorStore
	embedder QueryEmbedder
	logger   *slog.Logger
}

// RetrievedLists holds both result lists plus degradation info.
type RetrievedLists struct {
	Lexical []*store.LexicalResult
	Vector  []*store.VectorResult

	// EmbedderDegraded is set when the vector leg was skipped because
	// the embedder failed.
	EmbedderDegraded bool

	// CacheHit reports whether the query embedding came from cache.
	CacheHit bool
}

// NewDualRetriever wires the two search legs.
func NewDualRetriever(lexical store.LexicalIndex, vectors store.VectorStore, embedder QueryEmbedder, logger *slog.Logger) *DualRetriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &DualRetriever{
		lexical:  lexical,
		vectors:  vectors,
		embedder: embedder,
		logger:   logger,
	}
}

// Retrieve runs both searches concurrently and joins them.
func (r *DualRetriever) Retrieve(ctx context.Context, tenantID, query string, limit int) (*RetrievedLists, error) {
	lists := &RetrievedLists{}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		results, err := r.lexical.Search(gctx, tenantID, query, limit)
		if err != nil {
			return errors.Wrap(errors.ErrCodeRetrievalFailed, err).WithStage("lexical_search")
		}
		lists.Lexical = results
		return nil
	})

	g.Go(func() error {
		vec, cacheHit, err := r.embedder.EmbedQuery(gctx, tenantID, query)
		if err != nil {
			// Embedder down degrades to lexical-only retrieval, the
			// pipeline must not fail solely because of it.
			r.logger.Warn("vector_search_degraded",
				slog.String("tenant_id", tenantID),
				slog.String("error", err.Error()))
			lists.EmbedderDegraded = true
			return nil
		}
		lists.CacheHit = cacheHit

		results, err := r.vectors.Search(gctx, tenantID, vec, limit)
		if err != nil {
			return errors.Wrap(errors.ErrCodeRetrievalFailed, err).WithStage("vector_search")
		}
		lists.Vector = results
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return lists, nil
}
