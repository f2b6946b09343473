// Package config loads and validates ragcore configuration.
//
// Precedence, lowest to highest:
//  1. Built-in defaults
//  2. YAML config file (ragcore.yaml)
//  3. Environment variables (RAGCORE_*)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete ragcore configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	DataDir    string           `yaml:"data_dir" json:"data_dir"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Rerank     RerankConfig     `yaml:"rerank" json:"rerank"`
	Routing    RoutingConfig    `yaml:"routing" json:"routing"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// SearchConfig configures retrieval, fusion, and context assembly.
type SearchConfig struct {
	// FusionAlgorithm selects how vector and lexical results are merged:
	// "rrf" (default, rank-based) or "weighted" (score-based linear combination).
	FusionAlgorithm string `yaml:"fusion_algorithm" json:"fusion_algorithm"`

	// RRFConstant is the RRF smoothing parameter k (default: 60).
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// TopK is the number of passages kept in the final context (default: 5).
	TopK int `yaml:"top_k" json:"top_k"`

	// CandidateLimit is how many results each retriever leg fetches
	// before fusion (default: 20).
	CandidateLimit int `yaml:"candidate_limit" json:"candidate_limit"`

	// MinScore is the relevance floor applied during context assembly
	// (default: 0.3).
	MinScore float64 `yaml:"min_score" json:"min_score"`

	// LexicalBackend selects the lexical index implementation:
	// "sqlite" (default, FTS5) or "bleve".
	LexicalBackend string `yaml:"lexical_backend" json:"lexical_backend"`
}

// EmbeddingsConfig configures the remote embedding service client and
// the tenant-scoped query embedding cache.
type EmbeddingsConfig struct {
	Endpoint   string        `yaml:"endpoint" json:"endpoint"`
	Model      string        `yaml:"model" json:"model"`
	Dimensions int           `yaml:"dimensions" json:"dimensions"`
	BatchSize  int           `yaml:"batch_size" json:"batch_size"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`

	// RatePerSecond limits outbound embedding calls (default: 20).
	RatePerSecond float64 `yaml:"rate_per_second" json:"rate_per_second"`

	// CacheSize is the max number of cached query embeddings (default: 4096).
	CacheSize int `yaml:"cache_size" json:"cache_size"`

	// CacheTTL is how long cached query embeddings live (default: 24h).
	CacheTTL time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
}

// RerankConfig configures the optional cross-encoder reranking stage.
type RerankConfig struct {
	Enabled  bool          `yaml:"enabled" json:"enabled"`
	Endpoint string        `yaml:"endpoint" json:"endpoint"`
	APIKey   string        `yaml:"api_key" json:"api_key"`
	Model    string        `yaml:"model" json:"model"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`

	// MinScore overrides search.min_score for queries where reranking
	// actually ran. Reranker score distributions are provider-dependent
	// and compress toward the low end, so the floor is reranker-specific
	// configuration rather than a universal constant.
	MinScore float64 `yaml:"min_score" json:"min_score"`
}

// RoutingConfig configures complexity scoring, intent classification,
// and model tier routing.
type RoutingConfig struct {
	// ModelEndpoint is the chat-completions endpoint for all tiers.
	ModelEndpoint string `yaml:"model_endpoint" json:"model_endpoint"`
	APIKey        string `yaml:"api_key" json:"api_key"`

	// FastThreshold routes below it to the fast tier (default: 0.3).
	FastThreshold float64 `yaml:"fast_threshold" json:"fast_threshold"`

	// CapableThreshold routes above it to the capable tier (default: 0.7).
	CapableThreshold float64 `yaml:"capable_threshold" json:"capable_threshold"`

	// MaxFallbackAttempts bounds total model attempts including the
	// primary selection (default: 3). Zero disables fallback.
	MaxFallbackAttempts int `yaml:"max_fallback_attempts" json:"max_fallback_attempts"`

	// CostCeiling flags (non-fatally) estimated cost above this value
	// in USD (default: 0.05).
	CostCeiling float64 `yaml:"cost_ceiling" json:"cost_ceiling"`

	// LatencyCeilingMs flags estimated latency above this value (default: 10000).
	LatencyCeilingMs float64 `yaml:"latency_ceiling_ms" json:"latency_ceiling_ms"`

	// MinIntentConfidence triggers AI-assisted reclassification below it
	// (default: 0.7).
	MinIntentConfidence float64 `yaml:"min_intent_confidence" json:"min_intent_confidence"`

	// EnableAIClassification allows LLM calls for low-confidence intent
	// and semantic complexity analysis (default: true).
	EnableAIClassification bool `yaml:"enable_ai_classification" json:"enable_ai_classification"`

	// IntentOverrides maps an intent to a tier that wins outright over
	// the complexity recommendation (e.g. troubleshooting: capable).
	IntentOverrides map[string]string `yaml:"intent_overrides" json:"intent_overrides"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

// CurrentVersion is the supported config schema version.
const CurrentVersion = 1

// Default returns the built-in default configuration.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		DataDir: defaultDataDir(),
		Search: SearchConfig{
			FusionAlgorithm: "rrf",
			RRFConstant:     60,
			TopK:            5,
			CandidateLimit:  20,
			MinScore:        0.3,
			LexicalBackend:  "sqlite",
		},
		Embeddings: EmbeddingsConfig{
			Endpoint:      "http://localhost:8091",
			Model:         "nomic-embed-text",
			Dimensions:    768,
			BatchSize:     32,
			Timeout:       30 * time.Second,
			RatePerSecond: 20,
			CacheSize:     4096,
			CacheTTL:      24 * time.Hour,
		},
		Rerank: RerankConfig{
			Enabled:  false,
			Endpoint: "http://localhost:8092",
			Model:    "cross-encoder-small",
			Timeout:  30 * time.Second,
			MinScore: 0.3,
		},
		Routing: RoutingConfig{
			ModelEndpoint:          "http://localhost:8093",
			FastThreshold:          0.3,
			CapableThreshold:       0.7,
			MaxFallbackAttempts:    3,
			CostCeiling:            0.05,
			LatencyCeilingMs:       10000,
			MinIntentConfidence:    0.7,
			EnableAIClassification: true,
			IntentOverrides:        map[string]string{},
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".ragcore")
	}
	return filepath.Join(home, ".ragcore")
}

// Load reads configuration from path, layering file values over defaults
// and environment variables over both. A missing file is not an error;
// defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides layers RAGCORE_* environment variables on top of cfg.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RAGCORE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("RAGCORE_FUSION_ALGORITHM"); v != "" {
		cfg.Search.FusionAlgorithm = v
	}
	if v := os.Getenv("RAGCORE_RRF_CONSTANT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Search.RRFConstant = n
		}
	}
	if v := os.Getenv("RAGCORE_MIN_SCORE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Search.MinScore = f
		}
	}
	if v := os.Getenv("RAGCORE_EMBED_ENDPOINT"); v != "" {
		cfg.Embeddings.Endpoint = v
	}
	if v := os.Getenv("RAGCORE_MODEL_ENDPOINT"); v != "" {
		cfg.Routing.ModelEndpoint = v
	}
	if v := os.Getenv("RAGCORE_API_KEY"); v != "" {
		cfg.Routing.APIKey = v
	}
	if v := os.Getenv("RAGCORE_RERANK_API_KEY"); v != "" {
		cfg.Rerank.APIKey = v
	}
	if v := os.Getenv("RAGCORE_RERANK_ENABLED"); v != "" {
		cfg.Rerank.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("RAGCORE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	switch c.Search.FusionAlgorithm {
	case "rrf", "weighted":
	default:
		return fmt.Errorf("search.fusion_algorithm must be \"rrf\" or \"weighted\", got %q", c.Search.FusionAlgorithm)
	}

	switch c.Search.LexicalBackend {
	case "sqlite", "bleve":
	default:
		return fmt.Errorf("search.lexical_backend must be \"sqlite\" or \"bleve\", got %q", c.Search.LexicalBackend)
	}

	if c.Search.RRFConstant <= 0 {
		return fmt.Errorf("search.rrf_constant must be positive, got %d", c.Search.RRFConstant)
	}
	if c.Search.TopK <= 0 {
		return fmt.Errorf("search.top_k must be positive, got %d", c.Search.TopK)
	}
	if c.Search.MinScore < 0 || c.Search.MinScore > 1 {
		return fmt.Errorf("search.min_score must be in [0,1], got %v", c.Search.MinScore)
	}

	if c.Routing.FastThreshold >= c.Routing.CapableThreshold {
		return fmt.Errorf("routing.fast_threshold (%v) must be below routing.capable_threshold (%v)",
			c.Routing.FastThreshold, c.Routing.CapableThreshold)
	}
	if c.Routing.MaxFallbackAttempts < 0 {
		return fmt.Errorf("routing.max_fallback_attempts must be >= 0, got %d", c.Routing.MaxFallbackAttempts)
	}

	if c.Embeddings.BatchSize <= 0 {
		return fmt.Errorf("embeddings.batch_size must be positive, got %d", c.Embeddings.BatchSize)
	}

	return nil
}

// Save writes the configuration to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
