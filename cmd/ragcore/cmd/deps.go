package cmd

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/abrahaamv/ifinallywill-sub004/internal/assistant"
	"github.com/abrahaamv/ifinallywill-sub004/internal/config"
	"github.com/abrahaamv/ifinallywill-sub004/internal/embed"
	"github.com/abrahaamv/ifinallywill-sub004/internal/llm"
	"github.com/abrahaamv/ifinallywill-sub004/internal/routing"
	"github.com/abrahaamv/ifinallywill-sub004/internal/search"
	"github.com/abrahaamv/ifinallywill-sub004/internal/store"
	"github.com/abrahaamv/ifinallywill-sub004/internal/telemetry"
)

func setDefaultLogger(logger *slog.Logger) {
	slog.SetDefault(logger)
}

// services holds everything a command can need, fully wired. Commands
// call close when done; it persists the vector graphs and flushes
// telemetry.
type services struct {
	cfg *config.Config

	chunks   store.ChunkStore
	lexical  store.LexicalIndex
	vectors  *store.HNSWStore
	embedder *embed.CachedQueryEmbedder

	metricsStore *telemetry.SQLiteMetricsStore
	metrics      *telemetry.QueryMetrics

	pipeline *search.Pipeline
	indexer  *search.Indexer
	router   *routing.Router
	service  *assistant.Service

	vectorsDir string
}

// openServices wires the full dependency graph from configuration.
func openServices(ctx context.Context) (*services, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}

	logger := slog.Default()
	s := &services{cfg: cfg, vectorsDir: filepath.Join(cfg.DataDir, "vectors")}

	s.chunks, err = store.NewSQLiteChunkStore(filepath.Join(cfg.DataDir, "chunks.db"))
	if err != nil {
		return nil, err
	}

	backend := store.LexicalBackend(cfg.Search.LexicalBackend)
	s.lexical, err = store.NewLexicalIndex(backend, store.LexicalIndexPath(cfg.DataDir, backend), store.LexicalConfig{})
	if err != nil {
		s.close()
		return nil, err
	}

	s.vectors, err = store.NewHNSWStore(store.VectorStoreConfig{Dimensions: cfg.Embeddings.Dimensions})
	if err != nil {
		s.close()
		return nil, err
	}
	if err := s.vectors.Load(s.vectorsDir); err != nil {
		s.close()
		return nil, err
	}

	// SkipProbe keeps the CLI usable while the embedder is down; the
	// pipeline degrades to lexical-only at query time.
	httpEmbedder, err := embed.NewHTTPEmbedder(ctx, embed.HTTPConfig{
		Endpoint:      cfg.Embeddings.Endpoint,
		Model:         cfg.Embeddings.Model,
		Dimensions:    cfg.Embeddings.Dimensions,
		BatchSize:     cfg.Embeddings.BatchSize,
		Timeout:       cfg.Embeddings.Timeout,
		RatePerSecond: int(cfg.Embeddings.RatePerSecond),
		SkipProbe:     true,
	})
	if err != nil {
		s.close()
		return nil, err
	}
	cache := embed.NewQueryCache(cfg.Embeddings.Model, cfg.Embeddings.CacheSize, cfg.Embeddings.CacheTTL)
	s.embedder = embed.NewCachedQueryEmbedder(httpEmbedder, cache)

	metricsStore, err := telemetry.NewSQLiteMetricsStore(filepath.Join(cfg.DataDir, "telemetry.db"))
	if err != nil {
		s.close()
		return nil, err
	}
	s.metricsStore = metricsStore
	s.metrics = telemetry.NewQueryMetrics(metricsStore)

	retriever := search.NewDualRetriever(s.lexical, s.vectors, s.embedder, logger)
	expander := search.NewExpander(s.chunks)

	pipelineOpts := []search.PipelineOption{
		search.WithLogger(logger),
		search.WithMetrics(s.metrics),
	}
	if cfg.Rerank.Enabled && cfg.Rerank.Endpoint != "" {
		reranker, err := search.NewHTTPReranker(ctx, search.RerankerConfig{
			Endpoint:  cfg.Rerank.Endpoint,
			APIKey:    cfg.Rerank.APIKey,
			Model:     cfg.Rerank.Model,
			Timeout:   cfg.Rerank.Timeout,
			SkipProbe: true,
		})
		if err != nil {
			s.close()
			return nil, err
		}
		pipelineOpts = append(pipelineOpts, search.WithReranker(reranker))
	}

	s.pipeline = search.NewPipeline(retriever, expander, search.Config{
		Fusion:         cfg.Search.FusionAlgorithm,
		RRFConstant:    cfg.Search.RRFConstant,
		TopK:           cfg.Search.TopK,
		CandidateLimit: cfg.Search.CandidateLimit,
		MinScore:       cfg.Search.MinScore,
		RerankMinScore: cfg.Rerank.MinScore,
	}, pipelineOpts...)

	s.indexer = search.NewIndexer(s.chunks, s.lexical, s.vectors, s.embedder, logger)

	client, err := llm.NewHTTPClient(llm.HTTPConfig{
		Endpoint: cfg.Routing.ModelEndpoint,
		APIKey:   cfg.Routing.APIKey,
	})
	if err != nil {
		s.close()
		return nil, err
	}

	var analyzer routing.ConceptAnalyzer
	var refiner routing.IntentRefiner
	if cfg.Routing.EnableAIClassification {
		analyzer = routing.NewLLMConceptAnalyzer(client, "")
		refiner = routing.NewLLMIntentRefiner(client, "")
	}

	scorer := routing.NewComplexityScorer(routing.ComplexityConfig{
		FastThreshold:    cfg.Routing.FastThreshold,
		CapableThreshold: cfg.Routing.CapableThreshold,
	}, analyzer, logger)
	classifier := routing.NewIntentClassifier(refiner, logger)

	overrides := make(map[routing.Intent]routing.Tier, len(cfg.Routing.IntentOverrides))
	for intent, tier := range cfg.Routing.IntentOverrides {
		overrides[routing.Intent(intent)] = routing.Tier(tier)
	}

	s.router = routing.NewRouter(scorer, classifier, client, routing.RouterConfig{
		Overrides:           overrides,
		CostCeilingUSD:      cfg.Routing.CostCeiling,
		LatencyCeilingMs:    cfg.Routing.LatencyCeilingMs,
		MaxFallbackAttempts: cfg.Routing.MaxFallbackAttempts,
	}, logger)

	s.service = assistant.NewService(s.pipeline, s.router, logger)
	return s, nil
}

// close tears the services down in reverse order, persisting the
// vector graphs first.
func (s *services) close() {
	if s.vectors != nil {
		if err := s.vectors.Save(s.vectorsDir); err != nil {
			slog.Warn("vector_save_failed", slog.String("error", err.Error()))
		}
		_ = s.vectors.Close()
	}
	if s.metrics != nil {
		_ = s.metrics.Close()
	}
	if s.metricsStore != nil {
		_ = s.metricsStore.Close()
	}
	if s.embedder != nil {
		_ = s.embedder.Close()
	}
	if s.lexical != nil {
		_ = s.lexical.Close()
	}
	if s.chunks != nil {
		_ = s.chunks.Close()
	}
}
