package search

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abrahaamv/ifinallywill-sub004/internal/errors"
	"github.com/abrahaamv/ifinallywill-sub004/internal/telemetry"
)

// Config holds the pipeline's tuning knobs.
type Config struct {
	Fusion         string  // "rrf" or "weighted"
	RRFConstant    int     // RRF smoothing parameter
	TopK           int     // passages returned
	CandidateLimit int     // hits fetched per search leg
	MinScore       float64 // relevance floor on fusion scores

	// RerankMinScore replaces MinScore when the reranker actually ran.
	// Cross-encoder score distributions compress toward the low end,
	// so the floor is provider-dependent configuration, not a shared
	// constant.
	RerankMinScore float64
}

// Pipeline is the retrieval half of the system: dual search, fusion,
// expansion, optional rerank, assembly. All dependencies are injected
// at construction so tests can substitute fakes.
type Pipeline struct {
	retriever *DualRetriever
	expander  *Expander
	reranker  Reranker // nil disables reranking
	config    Config
	logger    *slog.Logger
	metrics   *telemetry.QueryMetrics
}

// PipelineOption customizes pipeline construction.
type PipelineOption func(*Pipeline)

// WithReranker enables the rerank stage.
func WithReranker(r Reranker) PipelineOption {
	return func(p *Pipeline) { p.reranker = r }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// WithMetrics enables query telemetry collection.
func WithMetrics(m *telemetry.QueryMetrics) PipelineOption {
	return func(p *Pipeline) { p.metrics = m }
}

// NewPipeline wires a retrieval pipeline.
func NewPipeline(retriever *DualRetriever, expander *Expander, cfg Config, opts ...PipelineOption) *Pipeline {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = DefaultCandidateLimit
	}
	if cfg.MinScore <= 0 {
		cfg.MinScore = DefaultMinScore
	}
	if cfg.Fusion == "" {
		cfg.Fusion = FusionRRF
	}

	p := &Pipeline{
		retriever: retriever,
		expander:  expander,
		config:    cfg,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RetrieveContext runs the full pipeline for one query.
//
// Degradable failures (embedder down, reranker down) reduce quality
// but never fail the call; zero hits return an empty context, not an
// error; only store failures propagate.
func (p *Pipeline) RetrieveContext(ctx context.Context, tenantID, query string, opts Options) (*Response, error) {
	start := time.Now()
	requestID := uuid.NewString()

	if tenantID == "" {
		return nil, errors.New(errors.ErrCodeUnknownTenant, "tenant ID is required", nil)
	}
	if strings.TrimSpace(query) == "" {
		return nil, errors.New(errors.ErrCodeQueryEmpty, "query is empty", nil)
	}

	opts = opts.withDefaults(Options{
		TopK:           p.config.TopK,
		CandidateLimit: p.config.CandidateLimit,
		MinScore:       p.config.MinScore,
		Fusion:         p.config.Fusion,
	})

	lists, err := p.retriever.Retrieve(ctx, tenantID, query, opts.CandidateLimit)
	if err != nil {
		return nil, err
	}

	fuser := NewFuser(opts.Fusion, p.config.RRFConstant, query)
	fused := fuser.Fuse(lists.Lexical, lists.Vector)

	expanded, err := p.expander.Expand(ctx, tenantID, fused)
	if err != nil {
		return nil, err
	}

	var degraded []string
	if lists.EmbedderDegraded {
		degraded = append(degraded, "embedder")
	}

	minScore := opts.MinScore
	results := expanded
	if p.reranker != nil && !opts.DisableRerank && len(expanded) > 0 {
		reranked, ok := applyRerank(ctx, p.reranker, p.logger, query, expanded)
		if ok {
			results = reranked
			if p.config.RerankMinScore > 0 {
				minScore = p.config.RerankMinScore
			}
		} else {
			degraded = append(degraded, "reranker")
		}
	}

	contextBlock, kept := Assemble(results, minScore, opts.TopK)
	elapsed := time.Since(start)

	p.logger.Debug("retrieve_context",
		slog.String("request_id", requestID),
		slog.String("tenant_id", tenantID),
		slog.Int("lexical_hits", len(lists.Lexical)),
		slog.Int("vector_hits", len(lists.Vector)),
		slog.Int("fused", len(fused)),
		slog.Int("returned", len(kept)),
		slog.Bool("cache_hit", lists.CacheHit),
		slog.Duration("latency", elapsed))

	if p.metrics != nil {
		p.metrics.Record(telemetry.QueryEvent{
			Timestamp:   start,
			TenantID:    tenantID,
			Query:       query,
			QueryType:   string(ClassifyQueryType(query)),
			ResultCount: len(kept),
			LatencyMs:   elapsed.Milliseconds(),
			CacheHit:    lists.CacheHit,
			Degraded:    degraded,
		})
	}

	return &Response{
		Context:          contextBlock,
		Chunks:           kept,
		TotalChunks:      len(kept),
		ProcessingTimeMs: elapsed.Milliseconds(),
		Degraded:         degraded,
	}, nil
}
