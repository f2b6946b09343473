package search

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scored(pairs ...any) []*RetrievalResult {
	var out []*RetrievalResult
	for i := 0; i < len(pairs); i += 2 {
		id := pairs[i].(string)
		out = append(out, &RetrievalResult{
			ID:    id,
			Score: pairs[i+1].(float64),
			Text:  "text of " + id,
		})
	}
	return out
}

func TestAssemble(t *testing.T) {
	t.Run("renders numbered blocks", func(t *testing.T) {
		ctx, kept := Assemble(scored("a", 0.9, "b", 0.8), 0.3, 5)
		require.Len(t, kept, 2)
		assert.Equal(t, "[1] text of a\n\n[2] text of b", ctx)
	})

	t.Run("filters below the floor", func(t *testing.T) {
		ctx, kept := Assemble(scored("a", 0.9, "b", 0.25), 0.3, 5)
		require.Len(t, kept, 1)
		assert.Equal(t, "[1] text of a", ctx)
	})

	t.Run("caps at topK", func(t *testing.T) {
		_, kept := Assemble(scored("a", 0.9, "b", 0.8, "c", 0.7), 0.3, 2)
		require.Len(t, kept, 2)
		assert.Equal(t, "a", kept[0].ID)
		assert.Equal(t, "b", kept[1].ID)
	})

	t.Run("zero survivors yield empty context, not error", func(t *testing.T) {
		ctx, kept := Assemble(scored("a", 0.1), 0.3, 5)
		assert.Empty(t, ctx)
		assert.Empty(t, kept)
	})

	t.Run("raising the floor never grows the result set", func(t *testing.T) {
		results := scored("a", 0.9, "b", 0.7, "c", 0.5, "d", 0.3, "e", 0.1)
		prev := len(results) + 1
		for _, floor := range []float64{0.0, 0.2, 0.4, 0.6, 0.8, 1.0} {
			_, kept := Assemble(results, floor, 10)
			assert.LessOrEqual(t, len(kept), prev,
				fmt.Sprintf("floor %.1f returned more results than a lower floor", floor))
			prev = len(kept)
		}
	})
}
