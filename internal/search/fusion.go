package search

import (
	"sort"

	"github.com/abrahaamv/ifinallywill-sub004/internal/store"
)

// DefaultRRFConstant is the standard RRF smoothing parameter.
// k=60 is empirically validated across domains.
const DefaultRRFConstant = 60

// FusedResult is a single result after fusion.
type FusedResult struct {
	ChunkID      string   // chunk identifier
	Score        float64  // combined score, normalized 0-1
	RawScore     float64  // pre-normalization combined score
	LexScore     float64  // original lexical score (preserved)
	LexRank      int      // position in lexical list (1-indexed, 0 if absent)
	VecScore     float64  // original vector similarity (preserved)
	VecRank      int      // position in vector list (1-indexed, 0 if absent)
	InBothLists  bool     // appeared in both result lists
	MatchedTerms []string // lexical matched terms
}

// Fuser merges a lexical and a vector result list into one ranked list
// with a single entry per chunk id.
type Fuser interface {
	Fuse(lex []*store.LexicalResult, vec []*store.VectorResult) []*FusedResult
}

// RRFFusion combines the two lists with Reciprocal Rank Fusion:
//
//	score(d) = Σ 1 / (k + rank_i)
//
// summed over the lists that contain d. Rank-based, so it needs no
// score normalization and is robust to the two sources scoring on
// incomparable scales. This is the default algorithm.
type RRFFusion struct {
	K int
}

// NewRRFFusion creates an RRF fuser; k <= 0 defaults to 60.
func NewRRFFusion(k int) *RRFFusion {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &RRFFusion{K: k}
}

// Fuse merges the lists. Results are sorted by score descending with
// deterministic tie-breaks, then normalized so the top score is 1.0
// (RawScore keeps the pre-normalization value).
func (f *RRFFusion) Fuse(lex []*store.LexicalResult, vec []*store.VectorResult) []*FusedResult {
	if len(lex) == 0 && len(vec) == 0 {
		return []*FusedResult{}
	}

	scores := make(map[string]*FusedResult, len(lex)+len(vec))

	for rank, r := range lex {
		result := getOrCreate(scores, r.ID)
		result.LexScore = r.Score
		result.LexRank = rank + 1
		result.MatchedTerms = r.MatchedTerms
		result.RawScore += 1.0 / float64(f.K+rank+1)
	}

	for rank, r := range vec {
		result := getOrCreate(scores, r.ID)
		result.VecScore = r.Score
		result.VecRank = rank + 1
		result.RawScore += 1.0 / float64(f.K+rank+1)
		if result.LexRank > 0 {
			result.InBothLists = true
		}
	}

	results := toSortedSlice(scores, func(r *FusedResult) float64 { return r.RawScore })
	normalize(results)
	return results
}

// WeightedFusion normalizes each list's scores by its own max and
// combines them linearly:
//
//	score(d) = alpha * vecNorm(d) + (1-alpha) * lexNorm(d)
//
// Alpha comes from the query-type classifier.
type WeightedFusion struct {
	Alpha float64
}

// NewWeightedFusion creates a weighted fuser for the given alpha.
func NewWeightedFusion(alpha float64) *WeightedFusion {
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	return &WeightedFusion{Alpha: alpha}
}

// Fuse merges the lists with max-normalized linear weighting.
func (f *WeightedFusion) Fuse(lex []*store.LexicalResult, vec []*store.VectorResult) []*FusedResult {
	if len(lex) == 0 && len(vec) == 0 {
		return []*FusedResult{}
	}

	// Per-list max normalization with a floor of 1 against div-by-zero.
	lexMax, vecMax := 1.0, 1.0
	for _, r := range lex {
		if r.Score > lexMax {
			lexMax = r.Score
		}
	}
	for _, r := range vec {
		if r.Score > vecMax {
			vecMax = r.Score
		}
	}

	scores := make(map[string]*FusedResult, len(lex)+len(vec))

	for rank, r := range lex {
		result := getOrCreate(scores, r.ID)
		result.LexScore = r.Score
		result.LexRank = rank + 1
		result.MatchedTerms = r.MatchedTerms
		result.RawScore += (1 - f.Alpha) * (r.Score / lexMax)
	}

	for rank, r := range vec {
		result := getOrCreate(scores, r.ID)
		result.VecScore = r.Score
		result.VecRank = rank + 1
		result.RawScore += f.Alpha * (r.Score / vecMax)
		if result.LexRank > 0 {
			result.InBothLists = true
		}
	}

	results := toSortedSlice(scores, func(r *FusedResult) float64 { return r.RawScore })
	normalize(results)
	return results
}

// NewFuser picks the fusion algorithm for a query. Weighted fusion
// derives its alpha from the query type; everything else gets RRF.
func NewFuser(algorithm string, rrfK int, query string) Fuser {
	if algorithm == FusionWeighted {
		return NewWeightedFusion(AlphaFor(ClassifyQueryType(query)))
	}
	return NewRRFFusion(rrfK)
}

func getOrCreate(m map[string]*FusedResult, id string) *FusedResult {
	if r, ok := m[id]; ok {
		return r
	}
	r := &FusedResult{ChunkID: id}
	m[id] = r
	return r
}

// toSortedSlice converts the map to a slice sorted by score with
// deterministic tie-breaks: in-both-lists first, then higher lexical
// score, then chunk id.
func toSortedSlice(m map[string]*FusedResult, score func(*FusedResult) float64) []*FusedResult {
	results := make([]*FusedResult, 0, len(m))
	for _, r := range m {
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if score(a) != score(b) {
			return score(a) > score(b)
		}
		if a.InBothLists != b.InBothLists {
			return a.InBothLists
		}
		if a.LexScore != b.LexScore {
			return a.LexScore > b.LexScore
		}
		return a.ChunkID < b.ChunkID
	})

	return results
}

// normalize scales scores so the top result is 1.0.
func normalize(results []*FusedResult) {
	if len(results) == 0 {
		return
	}
	maxScore := results[0].RawScore
	if maxScore == 0 {
		return
	}
	for _, r := range results {
		r.Score = r.RawScore / maxScore
	}
}
