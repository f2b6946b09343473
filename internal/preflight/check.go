// Package preflight validates that ragcore's collaborating services and
// local state are usable before a command relies on them.
package preflight

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/abrahaamv/ifinallywill-sub004/internal/config"
)

// Status classifies a single check outcome.
type Status int

const (
	StatusPass Status = iota
	StatusWarn
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the status as its lowercase name.
func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", s.String())), nil
}

// Result holds the outcome of one check. Required results gate command
// execution; optional ones only degrade retrieval quality.
type Result struct {
	Name     string `json:"name"`
	Status   Status `json:"status"`
	Message  string `json:"message"`
	Required bool   `json:"required"`
}

// IsCritical reports whether this is a required check that failed.
func (r Result) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Probe is the availability surface the embedder and reranker clients
// already expose.
type Probe interface {
	Available(ctx context.Context) bool
}

// Checker runs service and state checks against a loaded configuration.
type Checker struct {
	cfg      *config.Config
	embedder Probe
	reranker Probe
	client   *http.Client
}

// Option configures a Checker.
type Option func(*Checker)

// WithEmbedder supplies the embedding client to probe.
func WithEmbedder(p Probe) Option {
	return func(c *Checker) { c.embedder = p }
}

// WithReranker supplies the reranker client to probe.
func WithReranker(p Probe) Option {
	return func(c *Checker) { c.reranker = p }
}

// WithHTTPClient overrides the client used for endpoint reachability.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Checker) { c.client = client }
}

// New creates a Checker for cfg.
func New(cfg *config.Config, opts ...Option) *Checker {
	c := &Checker{
		cfg:    cfg,
		client: &http.Client{Timeout: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes every check and returns the results in a stable order.
func (c *Checker) Run(ctx context.Context) []Result {
	results := []Result{
		c.CheckDataDir(),
		c.CheckThresholds(),
		c.CheckEmbedder(ctx),
		c.CheckModelEndpoint(ctx),
	}
	if c.cfg.Rerank.Enabled {
		results = append(results, c.CheckReranker(ctx))
	}
	return results
}

// HasCriticalFailures reports whether any required check failed.
func HasCriticalFailures(results []Result) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// CheckDataDir verifies the data directory exists and is writable.
func (c *Checker) CheckDataDir() Result {
	r := Result{Name: "data_dir", Required: true}

	if err := os.MkdirAll(c.cfg.DataDir, 0o755); err != nil {
		r.Status = StatusFail
		r.Message = fmt.Sprintf("cannot create %s: %v", c.cfg.DataDir, err)
		return r
	}
	probe := filepath.Join(c.cfg.DataDir, ".ragcore-preflight")
	f, err := os.Create(probe)
	if err != nil {
		r.Status = StatusFail
		r.Message = fmt.Sprintf("not writable: %v", err)
		return r
	}
	_ = f.Close()
	_ = os.Remove(probe)

	r.Status = StatusPass
	r.Message = c.cfg.DataDir
	return r
}

// CheckThresholds validates the routing complexity band boundaries.
func (c *Checker) CheckThresholds() Result {
	r := Result{Name: "routing_thresholds", Required: true}

	fast := c.cfg.Routing.FastThreshold
	capable := c.cfg.Routing.CapableThreshold
	if fast <= 0 || capable >= 1 || fast >= capable {
		r.Status = StatusFail
		r.Message = fmt.Sprintf("need 0 < fast (%.2f) < capable (%.2f) < 1", fast, capable)
		return r
	}

	r.Status = StatusPass
	r.Message = fmt.Sprintf("fast %.2f, capable %.2f", fast, capable)
	return r
}

// CheckEmbedder probes the embedding service. Failure is a warning: the
// pipeline degrades to lexical-only retrieval without it.
func (c *Checker) CheckEmbedder(ctx context.Context) Result {
	r := Result{Name: "embedder", Required: false}

	if c.embedder == nil {
		r.Status = StatusWarn
		r.Message = "no embedding client configured"
		return r
	}
	if !c.embedder.Available(ctx) {
		r.Status = StatusWarn
		r.Message = fmt.Sprintf("unreachable at %s; retrieval degrades to lexical-only", c.cfg.Embeddings.Endpoint)
		return r
	}

	r.Status = StatusPass
	r.Message = c.cfg.Embeddings.Endpoint
	return r
}

// CheckReranker probes the rerank service when it is enabled.
func (c *Checker) CheckReranker(ctx context.Context) Result {
	r := Result{Name: "reranker", Required: false}

	if c.reranker == nil {
		r.Status = StatusWarn
		r.Message = "rerank enabled but no client configured"
		return r
	}
	if !c.reranker.Available(ctx) {
		r.Status = StatusWarn
		r.Message = fmt.Sprintf("unreachable at %s; results keep fusion order", c.cfg.Rerank.Endpoint)
		return r
	}

	r.Status = StatusPass
	r.Message = c.cfg.Rerank.Endpoint
	return r
}

// CheckModelEndpoint verifies the completion endpoint answers HTTP at
// all. Any response counts; routing fallback handles per-call failures.
func (c *Checker) CheckModelEndpoint(ctx context.Context) Result {
	r := Result{Name: "model_endpoint", Required: false}

	endpoint := c.cfg.Routing.ModelEndpoint
	if endpoint == "" {
		r.Status = StatusFail
		r.Message = "routing.model_endpoint is not configured"
		r.Required = true
		return r
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, endpoint, nil)
	if err != nil {
		r.Status = StatusWarn
		r.Message = fmt.Sprintf("invalid endpoint %s: %v", endpoint, err)
		return r
	}
	resp, err := c.client.Do(req)
	if err != nil {
		r.Status = StatusWarn
		r.Message = fmt.Sprintf("unreachable at %s; ask will fail until it is up", endpoint)
		return r
	}
	_ = resp.Body.Close()

	r.Status = StatusPass
	r.Message = endpoint
	return r
}
