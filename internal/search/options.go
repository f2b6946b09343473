package search

// Fusion algorithm names.
const (
	FusionRRF      = "rrf"
	FusionWeighted = "weighted"
)

// Options tunes one RetrieveContext call. Zero values fall back to the
// pipeline's configured defaults.
type Options struct {
	// TopK is the maximum number of passages returned.
	TopK int

	// CandidateLimit is how many hits each search leg fetches before
	// fusion. Larger than TopK so fusion and reranking have material
	// to work with.
	CandidateLimit int

	// MinScore is the relevance floor applied at assembly.
	MinScore float64

	// Fusion overrides the configured fusion algorithm ("rrf" or
	// "weighted").
	Fusion string

	// DisableRerank skips the reranker even when configured.
	DisableRerank bool
}

// Default option values.
const (
	DefaultTopK           = 5
	DefaultCandidateLimit = 20
	DefaultMinScore       = 0.3
)

// withDefaults fills unset fields from defaults.
func (o Options) withDefaults(defaults Options) Options {
	if o.TopK <= 0 {
		o.TopK = defaults.TopK
	}
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.CandidateLimit <= 0 {
		o.CandidateLimit = defaults.CandidateLimit
	}
	if o.CandidateLimit <= 0 {
		o.CandidateLimit = DefaultCandidateLimit
	}
	if o.CandidateLimit < o.TopK {
		o.CandidateLimit = o.TopK
	}
	if o.MinScore <= 0 {
		o.MinScore = defaults.MinScore
	}
	if o.Fusion == "" {
		o.Fusion = defaults.Fusion
	}
	if o.Fusion == "" {
		o.Fusion = FusionRRF
	}
	return o
}
