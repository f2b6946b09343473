package routing

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRefiner struct {
	intent     Intent
	confidence float64
	err        error
	calls      int
}

func (r *stubRefiner) RefineIntent(_ context.Context, _ string) (Intent, float64, error) {
	r.calls++
	if r.err != nil {
		return IntentUnclear, 0, r.err
	}
	return r.intent, r.confidence, nil
}

func TestIntentClassifierRules(t *testing.T) {
	ctx := context.Background()
	c := NewIntentClassifier(nil, nil)

	tests := []struct {
		name      string
		query     string
		want      Intent
		knowledge bool
	}{
		{"greeting", "Hello there!", IntentConversational, false},
		{"broken login", "My login is broken, error 500", IntentTroubleshooting, true},
		{"definition", "What is the meaning of churn rate?", IntentFactual, true},
		{"setup", "configure the webhook integration", IntentTechnicalSupport, true},
		{"comparison", "compare plan A versus plan B", IntentAnalytical, true},
		{"drafting", "write a draft announcement", IntentCreative, false},
		{"cancellation", "cancel my order and refund it", IntentTransactional, true},
		{"no keywords", "zebra quantum trampoline", IntentUnclear, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := c.Classify(ctx, tt.query)
			assert.Equal(t, tt.want, result.Primary)
			assert.Equal(t, tt.knowledge, result.RequiresKnowledge)
		})
	}
}

func TestIntentClassifierConfidence(t *testing.T) {
	ctx := context.Background()
	c := NewIntentClassifier(nil, nil)

	t.Run("single unambiguous hit is fully confident", func(t *testing.T) {
		result := c.Classify(ctx, "Hello there!")
		assert.Equal(t, 1.0, result.Confidence)
	})

	t.Run("mixed hits dilute confidence", func(t *testing.T) {
		// troubleshooting 2 hits, technical_support 1 hit.
		result := c.Classify(ctx, "My login is broken, error 500")
		assert.Equal(t, IntentTroubleshooting, result.Primary)
		assert.InDelta(t, 2.0/3.0, result.Confidence, 1e-9)
		assert.Contains(t, result.Secondary, IntentTechnicalSupport)
	})

	t.Run("no hits default to half confidence", func(t *testing.T) {
		result := c.Classify(ctx, "zebra quantum trampoline")
		assert.Equal(t, 0.5, result.Confidence)
		assert.True(t, result.RequiresKnowledge)
	})
}

func TestIntentClassifierRefinement(t *testing.T) {
	ctx := context.Background()

	t.Run("confident rule result skips the refiner", func(t *testing.T) {
		refiner := &stubRefiner{intent: IntentAnalytical, confidence: 0.99}
		c := NewIntentClassifier(refiner, nil)

		result := c.Classify(ctx, "Hello there!")
		assert.Equal(t, IntentConversational, result.Primary)
		assert.Zero(t, refiner.calls)
	})

	t.Run("refiner adopted only when more confident", func(t *testing.T) {
		refiner := &stubRefiner{intent: IntentTechnicalSupport, confidence: 0.9}
		c := NewIntentClassifier(refiner, nil)

		result := c.Classify(ctx, "My login is broken, error 500")
		require.Equal(t, 1, refiner.calls)
		assert.Equal(t, IntentTechnicalSupport, result.Primary)
		assert.Equal(t, 0.9, result.Confidence)
		assert.True(t, result.Refined)
	})

	t.Run("less confident refiner is ignored", func(t *testing.T) {
		refiner := &stubRefiner{intent: IntentTechnicalSupport, confidence: 0.4}
		c := NewIntentClassifier(refiner, nil)

		result := c.Classify(ctx, "My login is broken, error 500")
		assert.Equal(t, IntentTroubleshooting, result.Primary)
		assert.False(t, result.Refined)
	})

	t.Run("refiner failure degrades to unclear with grounding", func(t *testing.T) {
		refiner := &stubRefiner{err: fmt.Errorf("model down")}
		c := NewIntentClassifier(refiner, nil)

		result := c.Classify(ctx, "My login is broken, error 500")
		assert.Equal(t, IntentUnclear, result.Primary)
		assert.True(t, result.RequiresKnowledge)
	})
}
