package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/abrahaamv/ifinallywill-sub004/internal/errors"
)

// Reranker defaults.
const (
	DefaultRerankerTimeout = 30 * time.Second
	DefaultRerankerModel   = "rerank-base"
)

// Reranker scores documents against a query with a cross-encoder.
// Scores come back in input order, same cardinality as documents.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string) ([]float64, error)
	Available(ctx context.Context) bool
	Close() error
}

// RerankerConfig configures the HTTP reranker client.
type RerankerConfig struct {
	Endpoint  string
	APIKey    string
	Model     string
	Timeout   time.Duration
	SkipProbe bool // skip the startup health check (tests)
}

// HTTPReranker calls an external cross-encoder reranking service.
// A circuit breaker stops hammering the service while it is down; the
// pipeline treats an open breaker like any other reranker failure and
// keeps the fusion ordering.
type HTTPReranker struct {
	client  *http.Client
	config  RerankerConfig
	breaker *errors.CircuitBreaker

	mu     sync.RWMutex
	closed bool
}

var _ Reranker = (*HTTPReranker)(nil)

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Results []struct {
		Index int     `json:"index"`
		Score float64 `json:"relevance_score"`
	} `json:"results"`
}

// NewHTTPReranker creates the client and probes the service unless
// SkipProbe is set.
func NewHTTPReranker(ctx context.Context, cfg RerankerConfig) (*HTTPReranker, error) {
	if cfg.Endpoint == "" {
		return nil, errors.ValidationError("reranker endpoint is required", nil)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultRerankerModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRerankerTimeout
	}

	r := &HTTPReranker{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		config:  cfg,
		breaker: errors.NewCircuitBreaker("reranker"),
	}

	if !cfg.SkipProbe {
		probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if !r.Available(probeCtx) {
			return nil, errors.New(errors.ErrCodeRerankerUnavailable, "reranking service unreachable", nil)
		}
	}

	return r, nil
}

// Rerank sends (query, documents) and returns one score per document
// in input order.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, documents []string) ([]float64, error) {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil, errors.New(errors.ErrCodeRerankerUnavailable, "reranker is closed", nil)
	}
	r.mu.RUnlock()

	if len(documents) == 0 {
		return []float64{}, nil
	}

	return errors.CircuitExecute(r.breaker, func() ([]float64, error) {
		return r.doRerank(ctx, query, documents)
	}, func() ([]float64, error) {
		return nil, errors.New(errors.ErrCodeRerankerUnavailable, "reranker circuit open", nil)
	})
}

func (r *HTTPReranker) doRerank(ctx context.Context, query string, documents []string) ([]float64, error) {
	body, err := json.Marshal(rerankRequest{
		Model:     r.config.Model,
		Query:     query,
		Documents: documents,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimRight(r.config.Endpoint, "/") + "/rerank"
	timeoutCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.config.APIKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, errors.New(errors.ErrCodeRerankerUnavailable, "failed to reach reranking service", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, errors.New(errors.ErrCodeRerankerUnavailable,
			fmt.Sprintf("reranking failed with status %d: %s", resp.StatusCode, string(respBody)), nil)
	}

	var result rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.New(errors.ErrCodeRerankerUnavailable, "failed to decode response", err)
	}
	if len(result.Results) != len(documents) {
		return nil, errors.New(errors.ErrCodeRerankerUnavailable,
			fmt.Sprintf("service returned %d scores for %d documents", len(result.Results), len(documents)), nil)
	}

	scores := make([]float64, len(documents))
	for _, res := range result.Results {
		if res.Index < 0 || res.Index >= len(documents) {
			return nil, errors.New(errors.ErrCodeRerankerUnavailable,
				fmt.Sprintf("score index %d out of range", res.Index), nil)
		}
		scores[res.Index] = res.Score
	}
	return scores, nil
}

// Available probes the service health endpoint.
func (r *HTTPReranker) Available(ctx context.Context) bool {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return false
	}
	r.mu.RUnlock()

	url := strings.TrimRight(r.config.Endpoint, "/") + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// Close releases idle connections.
func (r *HTTPReranker) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	if t, ok := r.client.Transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
	return nil
}

// applyRerank replaces fusion scores with reranker scores and re-sorts.
// On any failure it logs a warning and returns the input ordering
// untouched; reranking must never abort a query.
func applyRerank(ctx context.Context, reranker Reranker, logger *slog.Logger, query string, results []*RetrievalResult) ([]*RetrievalResult, bool) {
	if len(results) == 0 {
		return results, false
	}

	docs := make([]string, len(results))
	for i, r := range results {
		docs[i] = r.Text
	}

	scores, err := reranker.Rerank(ctx, query, docs)
	if err != nil {
		logger.Warn("rerank_degraded",
			slog.Int("documents", len(docs)),
			slog.String("error", err.Error()))
		return results, false
	}

	reranked := make([]*RetrievalResult, len(results))
	for i, r := range results {
		clone := *r
		clone.Score = scores[i]
		clone.Confidence = confidenceFor(scores[i])
		reranked[i] = &clone
	}

	sortResults(reranked)
	return reranked, true
}
