package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/abrahaamv/ifinallywill-sub004/internal/errors"
	"github.com/abrahaamv/ifinallywill-sub004/internal/llm"
)

// AI-assist strategies: single structured-format LLM calls backing the
// complexity scorer and the intent classifier. Both parse strictly and
// fail loudly so the callers' deterministic fallbacks take over.

const conceptPrompt = `Analyze the user query below. Respond with ONLY a JSON object, no prose:
{"concept_count": <number of distinct concepts>, "requires_reasoning": <true if answering needs multi-step reasoning>}

Query: %s`

const intentPrompt = `Classify the user query below into exactly one intent from this list:
factual, technical_support, troubleshooting, analytical, creative, transactional, conversational, unclear.
Respond with ONLY a JSON object, no prose:
{"intent": "<intent>", "confidence": <0.0-1.0>}

Query: %s`

// LLMConceptAnalyzer implements ConceptAnalyzer over a generation
// model.
type LLMConceptAnalyzer struct {
	client  llm.Client
	modelID string
}

// NewLLMConceptAnalyzer builds the analyzer. The cheap fast-tier model
// is the sensible default: this is a yes/no-and-a-count call.
func NewLLMConceptAnalyzer(client llm.Client, modelID string) *LLMConceptAnalyzer {
	if modelID == "" {
		modelID = SpecFor(TierFast).ModelID
	}
	return &LLMConceptAnalyzer{client: client, modelID: modelID}
}

var _ ConceptAnalyzer = (*LLMConceptAnalyzer)(nil)

// AnalyzeConcepts issues one structured call and parses the JSON reply.
func (a *LLMConceptAnalyzer) AnalyzeConcepts(ctx context.Context, query string) (*ConceptAnalysis, error) {
	completion, err := a.client.Complete(ctx, a.modelID, []llm.Message{
		{Role: "user", Content: fmt.Sprintf(conceptPrompt, query)},
	})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		ConceptCount      int  `json:"concept_count"`
		RequiresReasoning bool `json:"requires_reasoning"`
	}
	if err := json.Unmarshal([]byte(extractJSON(completion.Text)), &parsed); err != nil {
		return nil, errors.New(errors.ErrCodeModelCallFailed, "concept analysis returned malformed JSON", err)
	}
	if parsed.ConceptCount < 0 {
		parsed.ConceptCount = 0
	}
	return &ConceptAnalysis{
		ConceptCount:      parsed.ConceptCount,
		RequiresReasoning: parsed.RequiresReasoning,
	}, nil
}

// LLMIntentRefiner implements IntentRefiner over a generation model.
type LLMIntentRefiner struct {
	client  llm.Client
	modelID string
}

// NewLLMIntentRefiner builds the refiner.
func NewLLMIntentRefiner(client llm.Client, modelID string) *LLMIntentRefiner {
	if modelID == "" {
		modelID = SpecFor(TierFast).ModelID
	}
	return &LLMIntentRefiner{client: client, modelID: modelID}
}

var _ IntentRefiner = (*LLMIntentRefiner)(nil)

// RefineIntent issues one structured call and parses the JSON reply.
func (r *LLMIntentRefiner) RefineIntent(ctx context.Context, query string) (Intent, float64, error) {
	completion, err := r.client.Complete(ctx, r.modelID, []llm.Message{
		{Role: "user", Content: fmt.Sprintf(intentPrompt, query)},
	})
	if err != nil {
		return IntentUnclear, 0, err
	}

	var parsed struct {
		Intent     string  `json:"intent"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(extractJSON(completion.Text)), &parsed); err != nil {
		return IntentUnclear, 0, errors.New(errors.ErrCodeModelCallFailed, "intent refinement returned malformed JSON", err)
	}

	intent := Intent(strings.TrimSpace(strings.ToLower(parsed.Intent)))
	if !IsValidIntent(intent) {
		return IntentUnclear, 0, errors.New(errors.ErrCodeModelCallFailed,
			fmt.Sprintf("intent refinement returned unknown intent %q", parsed.Intent), nil)
	}
	if parsed.Confidence < 0 || parsed.Confidence > 1 {
		return IntentUnclear, 0, errors.New(errors.ErrCodeModelCallFailed,
			fmt.Sprintf("intent refinement returned out-of-range confidence %v", parsed.Confidence), nil)
	}
	return intent, parsed.Confidence, nil
}

// extractJSON trims anything around the outermost JSON object; models
// occasionally wrap replies in code fences despite instructions.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return text
	}
	return text[start : end+1]
}
