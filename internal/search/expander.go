package search

import (
	"context"
	"sort"
	"strconv"

	"github.com/abrahaamv/ifinallywill-sub004/internal/errors"
	"github.com/abrahaamv/ifinallywill-sub004/internal/store"
)

// Expander implements small-to-big expansion: hits on precise child
// chunks are replaced by their larger parent chunks, inheriting the
// child score. When the tenant's corpus has no hierarchy at all the
// stage is a pass-through, detected with a cheap existence probe so no
// per-chunk parent lookups run.
type Expander struct {
	chunks store.ChunkStore
}

// NewExpander creates an expander over the chunk store.
func NewExpander(chunks store.ChunkStore) *Expander {
	return &Expander{chunks: chunks}
}

// Expand resolves fused ids to chunks, maps children to parents,
// deduplicates by final chunk id keeping the best score, and re-sorts.
// Fused ids missing from the store are dropped silently (the index can
// briefly run ahead of the chunk store).
func (e *Expander) Expand(ctx context.Context, tenantID string, fused []*FusedResult) ([]*RetrievalResult, error) {
	if len(fused) == 0 {
		return []*RetrievalResult{}, nil
	}

	ids := make([]string, len(fused))
	scoreByID := make(map[string]*FusedResult, len(fused))
	for i, f := range fused {
		ids[i] = f.ChunkID
		scoreByID[f.ChunkID] = f
	}

	chunks, err := e.chunks.GetMany(ctx, tenantID, ids)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRetrievalFailed, err).WithStage("expansion")
	}

	hierarchical, err := e.chunks.HasParents(ctx, tenantID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRetrievalFailed, err).WithStage("expansion")
	}

	// Collect parent ids to load in one call. Mixed corpora are fine:
	// only chunks that actually carry a parent get expanded.
	var parentIDs []string
	if hierarchical {
		seen := make(map[string]struct{})
		for _, c := range chunks {
			if c.IsChild() {
				if _, ok := seen[c.ParentID]; !ok {
					seen[c.ParentID] = struct{}{}
					parentIDs = append(parentIDs, c.ParentID)
				}
			}
		}
	}

	parents := make(map[string]*store.Chunk, len(parentIDs))
	if len(parentIDs) > 0 {
		loaded, err := e.chunks.GetMany(ctx, tenantID, parentIDs)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeRetrievalFailed, err).WithStage("expansion")
		}
		for _, p := range loaded {
			parents[p.ID] = p
		}
	}

	// Replace children with parents, dedupe by final id keeping max score.
	best := make(map[string]*RetrievalResult, len(chunks))
	for _, c := range chunks {
		f := scoreByID[c.ID]

		final := c
		meta := map[string]string{metaExpansion: "direct"}
		if c.IsChild() {
			if p, ok := parents[c.ParentID]; ok {
				final = p
				meta = map[string]string{
					metaExpansion:  "parent",
					metaChildID:    c.ID,
					metaChildScore: strconv.FormatFloat(f.Score, 'f', 4, 64),
				}
			}
		}
		for k, v := range final.Metadata {
			if _, reserved := meta[k]; !reserved {
				meta[k] = v
			}
		}

		existing, ok := best[final.ID]
		if ok && existing.Score >= f.Score {
			continue
		}
		best[final.ID] = &RetrievalResult{
			ID:         final.ID,
			Score:      f.Score,
			Text:       final.Text,
			DocumentID: final.DocumentID,
			Metadata:   meta,
			Confidence: confidenceFor(f.Score),
		}
	}

	results := make([]*RetrievalResult, 0, len(best))
	for _, r := range best {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	return results, nil
}
