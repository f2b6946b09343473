package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFallbackChain(t *testing.T) {
	tests := []struct {
		selected Tier
		want     []Tier
	}{
		{TierFast, []Tier{TierBalanced, TierCapable, TierPremium}},
		{TierBalanced, []Tier{TierFast, TierCapable, TierPremium}},
		{TierCapable, []Tier{TierFast, TierBalanced, TierPremium}},
		{TierPremium, []Tier{TierFast, TierBalanced, TierCapable}},
	}

	for _, tt := range tests {
		t.Run(string(tt.selected), func(t *testing.T) {
			chain := FallbackChain(tt.selected)
			assert.Equal(t, tt.want, chain)
			assert.NotContains(t, chain, tt.selected)
		})
	}
}

func TestSpecFor(t *testing.T) {
	t.Run("every tier has a profile", func(t *testing.T) {
		for _, tier := range AllTiers() {
			spec := SpecFor(tier)
			assert.NotEmpty(t, spec.ModelID)
			assert.Positive(t, spec.PricePerMillionTokens)
			assert.Positive(t, spec.MsPerKTokens)
		}
	})

	t.Run("cost and latency rise with tier", func(t *testing.T) {
		tiers := AllTiers()
		for i := 1; i < len(tiers); i++ {
			assert.Greater(t, SpecFor(tiers[i]).PricePerMillionTokens, SpecFor(tiers[i-1]).PricePerMillionTokens)
			assert.Greater(t, SpecFor(tiers[i]).MsPerKTokens, SpecFor(tiers[i-1]).MsPerKTokens)
		}
	})

	t.Run("unknown tier falls back to balanced", func(t *testing.T) {
		assert.Equal(t, SpecFor(TierBalanced), SpecFor(Tier("bogus")))
	})
}

func TestEstimates(t *testing.T) {
	assert.InDelta(t, 0.25*2000/1e6, EstimateCost(TierFast, 2000), 1e-12)
	assert.InDelta(t, 300*2.0, EstimateLatencyMs(TierFast, 2000), 1e-9)
}
