package routing

import (
	"context"
	"log/slog"
	"math"
	"strings"
)

// Complexity scorer defaults.
const (
	DefaultLinguisticWeight = 0.20
	DefaultSemanticWeight   = 0.35
	DefaultContextualWeight = 0.25
	DefaultTechnicalWeight  = 0.20

	DefaultFastThreshold    = 0.3
	DefaultCapableThreshold = 0.7

	// defaultMaxAvgSentenceLength caps the sentence-length ratio; an
	// average of 20+ words per sentence saturates the signal.
	defaultMaxAvgSentenceLength = 20.0
)

// ConceptAnalysis is what the AI-assisted strategy reports about a
// query's semantic load.
type ConceptAnalysis struct {
	ConceptCount      int
	RequiresReasoning bool
}

// ConceptAnalyzer estimates concept count and reasoning demand.
// Implementations may call an LLM; failures degrade to the keyword
// fallback, never fail the scoring.
type ConceptAnalyzer interface {
	AnalyzeConcepts(ctx context.Context, query string) (*ConceptAnalysis, error)
}

// ComplexityFactors are the four scored dimensions, each in [0,1].
type ComplexityFactors struct {
	Linguistic float64 `json:"linguistic"`
	Semantic   float64 `json:"semantic"`
	Contextual float64 `json:"contextual"`
	Technical  float64 `json:"technical"`
}

// ComplexityScore is the scorer's full output.
type ComplexityScore struct {
	OverallScore    float64           `json:"overall_score"`
	Factors         ComplexityFactors `json:"factors"`
	RecommendedTier Tier              `json:"recommended_tier"`

	// Confidence is the normalized distance of the overall score from
	// the nearest tier boundary: scores deep inside a band are certain,
	// scores near 0.3 or 0.7 are toss-ups.
	Confidence float64 `json:"confidence"`
}

// ComplexityConfig tunes the scorer. Zero values take defaults.
type ComplexityConfig struct {
	LinguisticWeight float64
	SemanticWeight   float64
	ContextualWeight float64
	TechnicalWeight  float64

	FastThreshold    float64
	CapableThreshold float64
}

func (c ComplexityConfig) withDefaults() ComplexityConfig {
	if c.LinguisticWeight <= 0 {
		c.LinguisticWeight = DefaultLinguisticWeight
	}
	if c.SemanticWeight <= 0 {
		c.SemanticWeight = DefaultSemanticWeight
	}
	if c.ContextualWeight <= 0 {
		c.ContextualWeight = DefaultContextualWeight
	}
	if c.TechnicalWeight <= 0 {
		c.TechnicalWeight = DefaultTechnicalWeight
	}
	if c.FastThreshold <= 0 {
		c.FastThreshold = DefaultFastThreshold
	}
	if c.CapableThreshold <= 0 {
		c.CapableThreshold = DefaultCapableThreshold
	}
	return c
}

// reasoningVerbs signal multi-step reasoning in the keyword fallback.
var reasoningVerbs = []string{
	"analyze", "compare", "evaluate", "explain", "justify",
	"derive", "optimize", "summarize", "prove", "why",
}

// referentialPronouns make a query depend on conversation history.
var referentialPronouns = []string{"it", "this", "that", "they", "them", "these", "those"}

// technicalTerms are cross-domain technical vocabulary.
var technicalTerms = []string{
	"api", "database", "server", "authentication", "encryption",
	"latency", "webhook", "ssl", "token", "endpoint", "schema",
	"deployment", "migration", "cache", "index",
}

// domainBaseRates bias the technical factor by business domain.
// Unlisted domains use the general rate.
var domainBaseRates = map[string]float64{
	"technical_support": 0.30,
	"engineering":       0.35,
	"billing":           0.10,
	"sales":             0.10,
	"general":           0.15,
}

// ComplexityScorer rates queries along four weighted factors.
type ComplexityScorer struct {
	config   ComplexityConfig
	analyzer ConceptAnalyzer // nil disables AI assistance
	logger   *slog.Logger
}

// NewComplexityScorer creates a scorer. analyzer may be nil, in which
// case the semantic factor always uses the keyword fallback.
func NewComplexityScorer(cfg ComplexityConfig, analyzer ConceptAnalyzer, logger *slog.Logger) *ComplexityScorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ComplexityScorer{
		config:   cfg.withDefaults(),
		analyzer: analyzer,
		logger:   logger,
	}
}

// Score rates one query. history is prior user turns, oldest first;
// domain is the business domain the conversation runs in (may be "").
func (s *ComplexityScorer) Score(ctx context.Context, query string, history []string, domain string) *ComplexityScore {
	factors := ComplexityFactors{
		Linguistic: s.linguisticScore(query),
		Semantic:   s.semanticScore(ctx, query),
		Contextual: s.contextualScore(query, history),
		Technical:  s.technicalScore(query, domain),
	}

	overall := s.config.LinguisticWeight*factors.Linguistic +
		s.config.SemanticWeight*factors.Semantic +
		s.config.ContextualWeight*factors.Contextual +
		s.config.TechnicalWeight*factors.Technical
	overall = clamp01(overall)

	tier := s.tierFor(overall)

	return &ComplexityScore{
		OverallScore:    overall,
		Factors:         factors,
		RecommendedTier: tier,
		Confidence:      s.confidenceFor(overall),
	}
}

// linguisticScore combines average sentence length against a cap with
// the fraction of complex words (three or more vowel clusters).
func (s *ComplexityScorer) linguisticScore(query string) float64 {
	words := strings.Fields(query)
	if len(words) == 0 {
		return 0
	}

	sentences := countSentences(query)
	avgLen := float64(len(words)) / float64(sentences)
	lengthRatio := math.Min(avgLen/defaultMaxAvgSentenceLength, 1.0)

	complexWords := 0
	for _, w := range words {
		if vowelClusters(w) >= 3 {
			complexWords++
		}
	}
	complexFraction := float64(complexWords) / float64(len(words))

	return clamp01(0.6*lengthRatio + 0.4*complexFraction)
}

// semanticScore asks the AI strategy for concept count and reasoning
// demand; on any failure it degrades to the reasoning-verb keyword
// check.
func (s *ComplexityScorer) semanticScore(ctx context.Context, query string) float64 {
	if s.analyzer != nil {
		analysis, err := s.analyzer.AnalyzeConcepts(ctx, query)
		if err == nil && analysis != nil {
			score := math.Min(float64(analysis.ConceptCount)/5.0, 1.0) * 0.6
			if analysis.RequiresReasoning {
				score += 0.4
			}
			return clamp01(score)
		}
		if err != nil {
			s.logger.Warn("concept_analysis_degraded", slog.String("error", err.Error()))
		}
	}
	return s.keywordSemanticScore(query)
}

// keywordSemanticScore is the deterministic fallback: each reasoning
// verb found adds a third of the scale.
func (s *ComplexityScorer) keywordSemanticScore(query string) float64 {
	lower := strings.ToLower(query)
	hits := 0
	for _, verb := range reasoningVerbs {
		if containsWord(lower, verb) {
			hits++
		}
	}
	return math.Min(float64(hits)/3.0, 1.0)
}

// contextualScore grows with history length and referential pronouns;
// a query with no history carries no contextual load at all.
func (s *ComplexityScorer) contextualScore(query string, history []string) float64 {
	if len(history) == 0 {
		return 0
	}

	score := math.Min(float64(len(history))/10.0, 1.0) * 0.6

	lower := strings.ToLower(query)
	for _, p := range referentialPronouns {
		if containsWord(lower, p) {
			score += 0.4
			break
		}
	}
	return clamp01(score)
}

// technicalScore counts technical term hits on top of the domain's
// base rate.
func (s *ComplexityScorer) technicalScore(query, domain string) float64 {
	base, ok := domainBaseRates[domain]
	if !ok {
		base = domainBaseRates["general"]
	}

	lower := strings.ToLower(query)
	hits := 0
	for _, term := range technicalTerms {
		if containsWord(lower, term) {
			hits++
		}
	}
	return clamp01(base + float64(hits)*0.15)
}

// tierFor maps an overall score to a recommended tier.
func (s *ComplexityScorer) tierFor(overall float64) Tier {
	switch {
	case overall < s.config.FastThreshold:
		return TierFast
	case overall > s.config.CapableThreshold:
		return TierCapable
	default:
		return TierBalanced
	}
}

// confidenceFor normalizes the distance from the nearest tier boundary
// by the half-width of the band the score falls in.
func (s *ComplexityScorer) confidenceFor(overall float64) float64 {
	fast, capable := s.config.FastThreshold, s.config.CapableThreshold

	var distance, halfWidth float64
	switch {
	case overall < fast:
		distance = fast - overall
		halfWidth = fast / 2
	case overall > capable:
		distance = overall - capable
		halfWidth = (1 - capable) / 2
	default:
		distance = math.Min(overall-fast, capable-overall)
		halfWidth = (capable - fast) / 2
	}
	if halfWidth <= 0 {
		return 1
	}
	return clamp01(distance / halfWidth)
}

// countSentences counts terminator-delimited sentences, minimum one.
func countSentences(text string) int {
	n := 0
	for _, r := range text {
		if r == '.' || r == '!' || r == '?' {
			n++
		}
	}
	if n == 0 {
		return 1
	}
	return n
}

// vowelClusters counts runs of consecutive vowels, a cheap syllable
// proxy.
func vowelClusters(word string) int {
	clusters := 0
	inCluster := false
	for _, r := range strings.ToLower(word) {
		switch r {
		case 'a', 'e', 'i', 'o', 'u', 'y':
			if !inCluster {
				clusters++
				inCluster = true
			}
		default:
			inCluster = false
		}
	}
	return clusters
}

// containsWord reports whether text contains word as a whole token.
func containsWord(text, word string) bool {
	for _, f := range strings.FieldsFunc(text, func(r rune) bool {
		return !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9')
	}) {
		if f == word {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
