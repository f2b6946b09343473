// Package routing decides which generation-model tier answers a query:
// a complexity scorer and an intent classifier feed an explicit
// state-machine router with a bounded, sequential fallback chain.
package routing

// Tier is a named generation-model class with distinct cost, latency
// and quality tradeoffs.
type Tier string

const (
	TierFast     Tier = "fast"
	TierBalanced Tier = "balanced"
	TierCapable  Tier = "capable"
	TierPremium  Tier = "premium"
)

// tierOrder is the fixed declining-then-escalating order used to build
// fallback chains.
var tierOrder = []Tier{TierFast, TierBalanced, TierCapable, TierPremium}

// ModelSpec is the static cost/latency profile of one tier.
type ModelSpec struct {
	ModelID               string
	PricePerMillionTokens float64 // USD per 1M tokens
	MsPerKTokens          float64 // expected latency per 1K tokens
}

// tierTable holds the static per-tier estimates used for cost and
// latency projection. Prices are blended input/output rates.
var tierTable = map[Tier]ModelSpec{
	TierFast:     {ModelID: "ml-fast-1", PricePerMillionTokens: 0.25, MsPerKTokens: 300},
	TierBalanced: {ModelID: "ml-balanced-1", PricePerMillionTokens: 1.50, MsPerKTokens: 600},
	TierCapable:  {ModelID: "ml-capable-1", PricePerMillionTokens: 6.00, MsPerKTokens: 1200},
	TierPremium:  {ModelID: "ml-premium-1", PricePerMillionTokens: 20.00, MsPerKTokens: 2500},
}

// AllTiers returns the tiers in fixed order.
func AllTiers() []Tier {
	out := make([]Tier, len(tierOrder))
	copy(out, tierOrder)
	return out
}

// SpecFor returns the static profile for a tier. Unknown tiers map to
// the balanced profile so a bad override degrades instead of panicking.
func SpecFor(tier Tier) ModelSpec {
	if spec, ok := tierTable[tier]; ok {
		return spec
	}
	return tierTable[TierBalanced]
}

// IsValidTier reports whether t names a known tier.
func IsValidTier(t Tier) bool {
	_, ok := tierTable[t]
	return ok
}

// FallbackChain returns every tier except the selected one, preserving
// the fixed order.
func FallbackChain(selected Tier) []Tier {
	chain := make([]Tier, 0, len(tierOrder)-1)
	for _, t := range tierOrder {
		if t != selected {
			chain = append(chain, t)
		}
	}
	return chain
}

// EstimateCost projects the dollar cost of a call on a tier.
func EstimateCost(tier Tier, estimatedTokens int) float64 {
	return SpecFor(tier).PricePerMillionTokens * float64(estimatedTokens) / 1_000_000
}

// EstimateLatencyMs projects the latency of a call on a tier.
func EstimateLatencyMs(tier Tier, estimatedTokens int) float64 {
	return SpecFor(tier).MsPerKTokens * float64(estimatedTokens) / 1_000
}
