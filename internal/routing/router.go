package routing

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/abrahaamv/ifinallywill-sub004/internal/errors"
	"github.com/abrahaamv/ifinallywill-sub004/internal/llm"
)

// routeState names one phase of the routing state machine. The machine
// advances strictly forward: Scoring -> Routed -> Executing ->
// Succeeded | Exhausted.
type routeState string

const (
	stateScoring   routeState = "scoring"
	stateRouted    routeState = "routed"
	stateExecuting routeState = "executing"
	stateSucceeded routeState = "succeeded"
	stateExhausted routeState = "exhausted"
)

// DefaultMaxFallbackAttempts is the total attempt budget for one
// request, the primary attempt included.
const DefaultMaxFallbackAttempts = 3

// expectedCompletionTokens pads token estimates for the answer the
// model has not produced yet.
const expectedCompletionTokens = 500

// RouterConfig tunes the router.
type RouterConfig struct {
	// Overrides maps intents straight to tiers, bypassing complexity.
	Overrides map[Intent]Tier

	// CostCeilingUSD and LatencyCeilingMs flag expensive decisions in
	// the reasoning trail. Both are advisory, never blocking.
	CostCeilingUSD   float64
	LatencyCeilingMs float64

	// MaxFallbackAttempts is the total attempt budget (default 3).
	MaxFallbackAttempts int

	// DisableFallback limits execution to the selected tier only.
	DisableFallback bool
}

func (c RouterConfig) withDefaults() RouterConfig {
	if c.MaxFallbackAttempts <= 0 {
		c.MaxFallbackAttempts = DefaultMaxFallbackAttempts
	}
	return c
}

// RouteDecision is the routing phase's output.
type RouteDecision struct {
	SelectedTier  Tier     `json:"selected_tier"`
	ModelID       string   `json:"model_id"`
	FallbackChain []Tier   `json:"fallback_chain"`
	EstimatedCost float64  `json:"estimated_cost_usd"`
	EstimatedMs   float64  `json:"estimated_latency_ms"`
	Reasoning     []string `json:"reasoning"`

	Complexity *ComplexityScore `json:"complexity"`
	Intent     *IntentResult    `json:"intent"`
}

// ExecuteRequest is one generation request routed through the tiers.
type ExecuteRequest struct {
	Query    string
	History  []string // prior user turns, oldest first
	Domain   string
	Messages []llm.Message // full prompt; built from Query when empty
}

// ExecuteResult reports which model actually answered.
type ExecuteResult struct {
	Answer           string        `json:"answer"`
	UsedTier         Tier          `json:"used_tier"`
	UsedModel        string        `json:"used_model"`
	FallbackAttempts int           `json:"fallback_attempts"`
	Usage            llm.Usage     `json:"usage"`
	Decision         RouteDecision `json:"decision"`
}

// Router selects a model tier per query and executes with bounded
// sequential fallback.
type Router struct {
	scorer     *ComplexityScorer
	classifier *IntentClassifier
	client     llm.Client
	config     RouterConfig
	logger     *slog.Logger
}

// NewRouter wires a router. All collaborators are injected so tests
// substitute fakes.
func NewRouter(scorer *ComplexityScorer, classifier *IntentClassifier, client llm.Client, cfg RouterConfig, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		scorer:     scorer,
		classifier: classifier,
		client:     client,
		config:     cfg.withDefaults(),
		logger:     logger,
	}
}

// Route runs the scoring and routing phases and returns the decision
// without executing any model call.
func (r *Router) Route(ctx context.Context, query string, history []string, domain string) (*RouteDecision, error) {
	if query == "" {
		return nil, errors.New(errors.ErrCodeQueryEmpty, "query is empty", nil)
	}

	// Scoring: complexity and intent are independent, run them
	// concurrently. Both degrade internally and never error.
	var (
		complexity *ComplexityScore
		intent     *IntentResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		complexity = r.scorer.Score(gctx, query, history, domain)
		return nil
	})
	g.Go(func() error {
		intent = r.classifier.Classify(gctx, query)
		return nil
	})
	_ = g.Wait()

	// Routed: intent override wins outright, complexity otherwise.
	decision := &RouteDecision{
		Complexity: complexity,
		Intent:     intent,
	}

	if override, ok := r.config.Overrides[intent.Primary]; ok && IsValidTier(override) {
		decision.SelectedTier = override
		decision.Reasoning = append(decision.Reasoning,
			fmt.Sprintf("intent %s has a routing override to tier %s", intent.Primary, override))
	} else {
		decision.SelectedTier = complexity.RecommendedTier
		decision.Reasoning = append(decision.Reasoning,
			fmt.Sprintf("complexity %.2f recommends tier %s", complexity.OverallScore, complexity.RecommendedTier))
	}

	decision.ModelID = SpecFor(decision.SelectedTier).ModelID
	decision.FallbackChain = FallbackChain(decision.SelectedTier)

	tokens := estimateTokens(query, history)
	decision.EstimatedCost = EstimateCost(decision.SelectedTier, tokens)
	decision.EstimatedMs = EstimateLatencyMs(decision.SelectedTier, tokens)

	if r.config.CostCeilingUSD > 0 && decision.EstimatedCost > r.config.CostCeilingUSD {
		decision.Reasoning = append(decision.Reasoning,
			fmt.Sprintf("estimated cost $%.4f exceeds ceiling $%.4f", decision.EstimatedCost, r.config.CostCeilingUSD))
	}
	if r.config.LatencyCeilingMs > 0 && decision.EstimatedMs > r.config.LatencyCeilingMs {
		decision.Reasoning = append(decision.Reasoning,
			fmt.Sprintf("estimated latency %.0fms exceeds ceiling %.0fms", decision.EstimatedMs, r.config.LatencyCeilingMs))
	}

	r.logger.Debug("route_decision",
		slog.String("state", string(stateRouted)),
		slog.String("tier", string(decision.SelectedTier)),
		slog.String("intent", string(intent.Primary)),
		slog.Float64("complexity", complexity.OverallScore))

	return decision, nil
}

// ExecuteWithRouting routes the request and walks the fallback chain
// sequentially until a model answers or the attempt budget runs out.
func (r *Router) ExecuteWithRouting(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error) {
	decision, err := r.Route(ctx, req.Query, req.History, req.Domain)
	if err != nil {
		return nil, err
	}
	return r.Execute(ctx, decision, req)
}

// Execute runs a previously computed decision. Callers that already
// routed (to build an intent-aware prompt, say) avoid scoring twice.
func (r *Router) Execute(ctx context.Context, decision *RouteDecision, req ExecuteRequest) (*ExecuteResult, error) {
	messages := req.Messages
	if len(messages) == 0 {
		messages = []llm.Message{{Role: "user", Content: req.Query}}
	}

	attemptTiers := []Tier{decision.SelectedTier}
	if !r.config.DisableFallback {
		attemptTiers = append(attemptTiers, decision.FallbackChain...)
	}
	if len(attemptTiers) > r.config.MaxFallbackAttempts {
		attemptTiers = attemptTiers[:r.config.MaxFallbackAttempts]
	}

	var lastErr error
	for i, tier := range attemptTiers {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(errors.ErrCodeRoutingExhausted, err).WithStage("routing")
		}

		modelID := SpecFor(tier).ModelID
		completion, err := r.client.Complete(ctx, modelID, messages)
		if err != nil {
			lastErr = err
			r.logger.Warn("model_attempt_failed",
				slog.Int("attempt", i+1),
				slog.String("tier", string(tier)),
				slog.String("model", modelID),
				slog.String("error", err.Error()))
			continue
		}

		r.logger.Debug("model_attempt_succeeded",
			slog.String("state", string(stateSucceeded)),
			slog.Int("attempt", i+1),
			slog.String("tier", string(tier)))

		return &ExecuteResult{
			Answer:           completion.Text,
			UsedTier:         tier,
			UsedModel:        modelID,
			FallbackAttempts: i,
			Usage:            completion.Usage,
			Decision:         *decision,
		}, nil
	}

	// Exhausted: surface the last concrete error, never a generic one.
	return nil, errors.New(errors.ErrCodeRoutingExhausted,
		fmt.Sprintf("all %d routing attempts failed: %v", len(attemptTiers), lastErr),
		lastErr).WithStage("routing")
}

// estimateTokens approximates prompt plus completion tokens at four
// characters per token.
func estimateTokens(query string, history []string) int {
	chars := len(query)
	for _, h := range history {
		chars += len(h)
	}
	return chars/4 + expectedCompletionTokens
}
