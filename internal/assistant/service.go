// Package assistant is the facade the chat/session layer calls: it
// composes the retrieval pipeline and the model router into grounded
// question answering.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/abrahaamv/ifinallywill-sub004/internal/llm"
	"github.com/abrahaamv/ifinallywill-sub004/internal/routing"
	"github.com/abrahaamv/ifinallywill-sub004/internal/search"
)

const groundedSystemPrompt = `You are a knowledge-grounded assistant. Answer using ONLY the numbered context passages below. Cite passages as [n]. If the context does not contain the answer, say so plainly.

Context:
%s`

const ungroundedSystemPrompt = `You are a helpful assistant. No knowledge-base context matched this question; answer from general knowledge and say when you are unsure.`

// Request is one end-to-end ask.
type Request struct {
	TenantID string
	Query    string
	History  []string // prior user turns, oldest first
	Domain   string
	Options  search.Options
}

// Answer is the combined retrieval + generation result.
type Answer struct {
	Text             string                    `json:"text"`
	UsedTier         routing.Tier              `json:"used_tier"`
	UsedModel        string                    `json:"used_model"`
	FallbackAttempts int                       `json:"fallback_attempts"`
	Grounded         bool                      `json:"grounded"`
	Sources          []*search.RetrievalResult `json:"sources,omitempty"`
	Degraded         []string                  `json:"degraded,omitempty"`
}

// Service wires the two halves together.
type Service struct {
	pipeline *search.Pipeline
	router   *routing.Router
	logger   *slog.Logger
}

// NewService builds the facade.
func NewService(pipeline *search.Pipeline, router *routing.Router, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{pipeline: pipeline, router: router, logger: logger}
}

// RetrieveContext exposes the retrieval pipeline unchanged, for
// callers that do their own generation (evaluation harness,
// escalation service).
func (s *Service) RetrieveContext(ctx context.Context, tenantID, query string, opts search.Options) (*search.Response, error) {
	return s.pipeline.RetrieveContext(ctx, tenantID, query, opts)
}

// Route exposes the routing decision without executing it.
func (s *Service) Route(ctx context.Context, query string, history []string, domain string) (*routing.RouteDecision, error) {
	return s.router.Route(ctx, query, history, domain)
}

// Ask answers a query end to end: route, retrieve grounding context
// when the intent calls for it, build the prompt, and execute across
// the fallback chain.
func (s *Service) Ask(ctx context.Context, req Request) (*Answer, error) {
	decision, err := s.router.Route(ctx, req.Query, req.History, req.Domain)
	if err != nil {
		return nil, err
	}

	var (
		retrieval *search.Response
		grounded  bool
	)
	if decision.Intent.RequiresKnowledge {
		retrieval, err = s.pipeline.RetrieveContext(ctx, req.TenantID, req.Query, req.Options)
		if err != nil {
			return nil, err
		}
		grounded = retrieval.Context != ""
	}

	messages := buildMessages(req.Query, req.History, retrieval)

	result, err := s.router.Execute(ctx, decision, routing.ExecuteRequest{
		Query:    req.Query,
		History:  req.History,
		Domain:   req.Domain,
		Messages: messages,
	})
	if err != nil {
		return nil, err
	}

	answer := &Answer{
		Text:             result.Answer,
		UsedTier:         result.UsedTier,
		UsedModel:        result.UsedModel,
		FallbackAttempts: result.FallbackAttempts,
		Grounded:         grounded,
	}
	if retrieval != nil {
		answer.Sources = retrieval.Chunks
		answer.Degraded = retrieval.Degraded
	}

	s.logger.Debug("ask_answered",
		slog.String("tenant_id", req.TenantID),
		slog.String("tier", string(result.UsedTier)),
		slog.Int("fallback_attempts", result.FallbackAttempts),
		slog.Bool("grounded", grounded))

	return answer, nil
}

// buildMessages renders the prompt. Empty context (no retrieval ran,
// or nothing survived filtering) takes the context-free branch.
func buildMessages(query string, history []string, retrieval *search.Response) []llm.Message {
	system := ungroundedSystemPrompt
	if retrieval != nil && retrieval.Context != "" {
		system = fmt.Sprintf(groundedSystemPrompt, retrieval.Context)
	}

	messages := []llm.Message{{Role: "system", Content: system}}
	for _, turn := range history {
		if strings.TrimSpace(turn) != "" {
			messages = append(messages, llm.Message{Role: "user", Content: turn})
		}
	}
	return append(messages, llm.Message{Role: "user", Content: query})
}
