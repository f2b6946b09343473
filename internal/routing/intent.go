package routing

import (
	"context"
	"log/slog"
	"sort"
	"strings"
)

// Intent is a coarse classification of what the user wants.
type Intent string

const (
	IntentFactual          Intent = "factual"
	IntentTechnicalSupport Intent = "technical_support"
	IntentTroubleshooting  Intent = "troubleshooting"
	IntentAnalytical       Intent = "analytical"
	IntentCreative         Intent = "creative"
	IntentTransactional    Intent = "transactional"
	IntentConversational   Intent = "conversational"
	IntentUnclear          Intent = "unclear"
)

// DefaultRefineThreshold is the rule-based confidence below which the
// AI refiner is consulted.
const DefaultRefineThreshold = 0.7

// intentKeywords drive the rule-based classifier. Hits are whole-word.
var intentKeywords = map[Intent][]string{
	IntentFactual: {
		"what", "when", "where", "who", "define", "definition", "meaning",
	},
	IntentTechnicalSupport: {
		"configure", "install", "setup", "integrate", "connect",
		"api", "webhook", "documentation", "login",
	},
	IntentTroubleshooting: {
		"broken", "error", "fail", "failed", "failing", "crash",
		"crashed", "bug", "issue", "stuck", "fix",
	},
	IntentAnalytical: {
		"analyze", "compare", "comparison", "evaluate", "why",
		"difference", "versus", "tradeoff",
	},
	IntentCreative: {
		"write", "draft", "create", "generate", "compose", "design",
		"brainstorm",
	},
	IntentTransactional: {
		"buy", "purchase", "cancel", "refund", "upgrade", "downgrade",
		"subscribe", "invoice", "order", "renewal",
	},
	IntentConversational: {
		"hello", "hi", "hey", "thanks", "thank", "goodbye", "bye",
	},
}

// knowledgeFreeIntents can be answered without grounding context.
var knowledgeFreeIntents = map[Intent]bool{
	IntentConversational: true,
	IntentCreative:       true,
}

// IntentResult is the classifier's output.
type IntentResult struct {
	Primary    Intent   `json:"primary"`
	Secondary  []Intent `json:"secondary,omitempty"`
	Confidence float64  `json:"confidence"`

	// RequiresKnowledge tells the caller whether retrieval context
	// should ground the answer.
	RequiresKnowledge bool `json:"requires_knowledge"`

	// Refined is set when the AI refiner's classification was adopted.
	Refined bool `json:"refined,omitempty"`
}

// IntentRefiner is the AI-assisted second opinion, consulted when the
// rule-based confidence is low. Failures degrade, never propagate.
type IntentRefiner interface {
	RefineIntent(ctx context.Context, query string) (Intent, float64, error)
}

// IntentClassifier scores queries against the keyword tables, with an
// optional AI refiner for low-confidence cases.
type IntentClassifier struct {
	refiner         IntentRefiner // nil disables AI refinement
	refineThreshold float64
	logger          *slog.Logger
}

// NewIntentClassifier creates a classifier. refiner may be nil.
func NewIntentClassifier(refiner IntentRefiner, logger *slog.Logger) *IntentClassifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &IntentClassifier{
		refiner:         refiner,
		refineThreshold: DefaultRefineThreshold,
		logger:          logger,
	}
}

// Classify determines the query's intent. Rule-based scoring runs
// first; when its confidence is below the refine threshold and a
// refiner is configured, one AI call may override it, but only with a
// higher confidence.
func (c *IntentClassifier) Classify(ctx context.Context, query string) *IntentResult {
	result := c.classifyByRules(query)

	if c.refiner != nil && result.Confidence < c.refineThreshold {
		refined, confidence, err := c.refiner.RefineIntent(ctx, query)
		if err != nil {
			// Conservative degradation: unknown intent, keep grounding.
			c.logger.Warn("intent_refinement_degraded", slog.String("error", err.Error()))
			return &IntentResult{
				Primary:           IntentUnclear,
				Confidence:        result.Confidence,
				RequiresKnowledge: true,
			}
		}
		if IsValidIntent(refined) && confidence > result.Confidence {
			return &IntentResult{
				Primary:           refined,
				Secondary:         result.Secondary,
				Confidence:        confidence,
				RequiresKnowledge: !knowledgeFreeIntents[refined],
				Refined:           true,
			}
		}
	}

	return result
}

// classifyByRules runs the keyword scoring alone.
func (c *IntentClassifier) classifyByRules(query string) *IntentResult {
	lower := strings.ToLower(query)

	type scored struct {
		intent Intent
		hits   int
	}
	var scores []scored
	total := 0
	for intent, keywords := range intentKeywords {
		hits := 0
		for _, kw := range keywords {
			if containsWord(lower, kw) {
				hits++
			}
		}
		if hits > 0 {
			scores = append(scores, scored{intent, hits})
			total += hits
		}
	}

	if total == 0 {
		return &IntentResult{
			Primary:           IntentUnclear,
			Confidence:        0.5,
			RequiresKnowledge: true,
		}
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].hits != scores[j].hits {
			return scores[i].hits > scores[j].hits
		}
		return scores[i].intent < scores[j].intent
	})

	primary := scores[0].intent
	var secondary []Intent
	for _, s := range scores[1:] {
		secondary = append(secondary, s.intent)
		if len(secondary) == 2 {
			break
		}
	}

	return &IntentResult{
		Primary:           primary,
		Secondary:         secondary,
		Confidence:        float64(scores[0].hits) / float64(total),
		RequiresKnowledge: !knowledgeFreeIntents[primary],
	}
}

// IsValidIntent reports whether i names a known intent.
func IsValidIntent(i Intent) bool {
	if i == IntentUnclear {
		return true
	}
	_, ok := intentKeywords[i]
	return ok
}
