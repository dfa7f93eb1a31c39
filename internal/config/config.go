package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/NicholasJacob1990/iudex0-sub007/internal/circuitbreaker"
)

// Config is the root configuration for the iudex worker, loaded from
// iudex.yaml (CONFIG_PATH) with IUDEX_* environment overrides.
type Config struct {
	Service       ServiceConfig       `mapstructure:"service"`
	Temporal      TemporalConfig      `mapstructure:"temporal"`
	Router        RouterConfig        `mapstructure:"router"`
	Reasoning     ReasoningConfig     `mapstructure:"reasoning"`
	Memory        MemoryConfig        `mapstructure:"memory"`
	Citer         CiterConfig         `mapstructure:"citer"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Retrieval     RetrievalConfig     `mapstructure:"retrieval"`
	Resilience    ResilienceConfig    `mapstructure:"resilience"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// ResilienceConfig tunes the circuit breakers guarding Redis and the
// outbound retrieval HTTP clients. Zero fields fall back to the
// per-class defaults.
type ResilienceConfig struct {
	Redis circuitbreaker.Settings `mapstructure:"redis"`
	HTTP  circuitbreaker.Settings `mapstructure:"http"`
}

type ServiceConfig struct {
	Name     string `mapstructure:"name"`
	HTTPPort int    `mapstructure:"http_port"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// RouterConfig holds the query-router knobs. Arbitration is the optional
// model-backed tier that only runs for ambiguous queries or strict risk.
type RouterConfig struct {
	DefaultMode        string        `mapstructure:"default_mode"`
	MaxGraphHops       int           `mapstructure:"max_graph_hops"`
	ArbitrationEnabled bool          `mapstructure:"arbitration_enabled"`
	ArbitrationTimeout time.Duration `mapstructure:"arbitration_timeout"`
}

type ReasoningConfig struct {
	MaxDepth                int           `mapstructure:"max_depth"`
	MaxSubQuestions         int           `mapstructure:"max_sub_questions"`
	MaxRethink              int           `mapstructure:"max_rethink"`
	EnableVerification      bool          `mapstructure:"enable_verification"`
	EnableHallucinationLoop bool          `mapstructure:"enable_hallucination_loop"`
	EnableAbstention        bool          `mapstructure:"enable_abstention"`
	EnableMemory            bool          `mapstructure:"enable_memory"`
	// VerifierFailOpen controls the default when the verifier returns an
	// unparseable judgment: true approves, false rejects.
	VerifierFailOpen       bool          `mapstructure:"verifier_fail_open"`
	AbstainBelowConfidence float64       `mapstructure:"abstain_below_confidence"`
	RetrievalConcurrency   int           `mapstructure:"retrieval_concurrency"`
	TopEvidencePerQuestion int           `mapstructure:"top_evidence_per_question"`
	PassTimeout            time.Duration `mapstructure:"pass_timeout"`
}

type MemoryConfig struct {
	RedisAddr           string        `mapstructure:"redis_addr"`
	TTL                 time.Duration `mapstructure:"ttl"`
	SimilarityThreshold float64       `mapstructure:"similarity_threshold"`
	MaxResults          int           `mapstructure:"max_results"`
	PostgresDSN         string        `mapstructure:"postgres_dsn"`
}

type CiterConfig struct {
	MinCoverage       float64 `mapstructure:"min_coverage"`
	BlockCoverage     float64 `mapstructure:"block_coverage"`
	MaxCriticalGaps   int     `mapstructure:"max_critical_gaps"`
	MinUnverifiedToBlock int  `mapstructure:"min_unverified_to_block"`
	MaxSources        int     `mapstructure:"max_sources"`
	MaxExcerptChars   int     `mapstructure:"max_excerpt_chars"`
	AutoApproveHuman  bool    `mapstructure:"auto_approve_human"`
}

// ProviderConfig describes one model provider in the gateway fallback chain.
// Order in the list is fallback order.
type ProviderConfig struct {
	Name      string        `mapstructure:"name"`
	Kind      string        `mapstructure:"kind"` // "openai" or "http"
	BaseURL   string        `mapstructure:"base_url"`
	Model     string        `mapstructure:"model"`
	APIKeyEnv string        `mapstructure:"api_key_env"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RPS       float64       `mapstructure:"rps"`
}

type LLMConfig struct {
	Providers          []ProviderConfig `mapstructure:"providers"`
	MaxRetriesPerProvider int           `mapstructure:"max_retries_per_provider"`
}

type QdrantConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Host       string        `mapstructure:"host"`
	Port       int           `mapstructure:"port"`
	Collection string        `mapstructure:"collection"`
	TopK       int           `mapstructure:"top_k"`
	Threshold  float64       `mapstructure:"threshold"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type LexicalConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	TopK    int           `mapstructure:"top_k"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type GraphConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	MaxHops int           `mapstructure:"max_hops"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type EmbeddingsConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Model     string        `mapstructure:"model"`
	CacheSize int           `mapstructure:"cache_size"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type RetrievalConfig struct {
	Qdrant     QdrantConfig     `mapstructure:"qdrant"`
	Lexical    LexicalConfig    `mapstructure:"lexical"`
	Graph      GraphConfig      `mapstructure:"graph"`
	Embeddings EmbeddingsConfig `mapstructure:"embeddings"`
}

type ObservabilityConfig struct {
	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
		Port    int  `mapstructure:"port"`
	} `mapstructure:"metrics"`
	Tracing struct {
		Enabled      bool   `mapstructure:"enabled"`
		ServiceName  string `mapstructure:"service_name"`
		OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	} `mapstructure:"tracing"`
	Logging struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"logging"`
}

// Load reads the configuration file from CONFIG_PATH (default
// config/iudex.yaml), applies environment overrides and defaults, and
// validates the result. A missing file is not an error: defaults apply.
func Load() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/iudex.yaml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("IUDEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Service.Name == "" {
		c.Service.Name = "iudex-orchestrator"
	}
	if c.Service.HTTPPort == 0 {
		c.Service.HTTPPort = 8085
	}
	if c.Temporal.HostPort == "" {
		c.Temporal.HostPort = "localhost:7233"
	}
	if c.Temporal.Namespace == "" {
		c.Temporal.Namespace = "default"
	}
	if c.Temporal.TaskQueue == "" {
		c.Temporal.TaskQueue = "iudex-reasoning"
	}
	if c.Router.DefaultMode == "" {
		c.Router.DefaultMode = "auto"
	}
	if c.Router.MaxGraphHops == 0 {
		c.Router.MaxGraphHops = 2
	}
	if c.Router.ArbitrationTimeout == 0 {
		c.Router.ArbitrationTimeout = 20 * time.Second
	}
	if c.Reasoning.MaxDepth == 0 {
		c.Reasoning.MaxDepth = 2
	}
	if c.Reasoning.MaxSubQuestions == 0 {
		c.Reasoning.MaxSubQuestions = 6
	}
	if c.Reasoning.MaxRethink == 0 {
		c.Reasoning.MaxRethink = 2
	}
	if c.Reasoning.AbstainBelowConfidence == 0 {
		c.Reasoning.AbstainBelowConfidence = 0.25
	}
	if c.Reasoning.RetrievalConcurrency == 0 {
		c.Reasoning.RetrievalConcurrency = 4
	}
	if c.Reasoning.TopEvidencePerQuestion == 0 {
		c.Reasoning.TopEvidencePerQuestion = 8
	}
	if c.Reasoning.PassTimeout == 0 {
		c.Reasoning.PassTimeout = 10 * time.Minute
	}
	if c.Memory.RedisAddr == "" {
		c.Memory.RedisAddr = "localhost:6379"
	}
	if c.Memory.TTL == 0 {
		c.Memory.TTL = 30 * 24 * time.Hour
	}
	if c.Memory.SimilarityThreshold == 0 {
		c.Memory.SimilarityThreshold = 0.6
	}
	if c.Memory.MaxResults == 0 {
		c.Memory.MaxResults = 3
	}
	if c.Citer.MinCoverage == 0 {
		c.Citer.MinCoverage = 0.7
	}
	if c.Citer.BlockCoverage == 0 {
		c.Citer.BlockCoverage = 0.3
	}
	if c.Citer.MaxCriticalGaps == 0 {
		c.Citer.MaxCriticalGaps = 2
	}
	if c.Citer.MinUnverifiedToBlock == 0 {
		c.Citer.MinUnverifiedToBlock = 1
	}
	if c.Citer.MaxSources == 0 {
		c.Citer.MaxSources = 20
	}
	if c.Citer.MaxExcerptChars == 0 {
		c.Citer.MaxExcerptChars = 600
	}
	if c.LLM.MaxRetriesPerProvider == 0 {
		c.LLM.MaxRetriesPerProvider = 2
	}
	for i := range c.LLM.Providers {
		if c.LLM.Providers[i].Timeout == 0 {
			c.LLM.Providers[i].Timeout = 60 * time.Second
		}
		if c.LLM.Providers[i].Kind == "" {
			c.LLM.Providers[i].Kind = "http"
		}
	}
	if c.Retrieval.Qdrant.Port == 0 {
		c.Retrieval.Qdrant.Port = 6333
	}
	if c.Retrieval.Qdrant.Collection == "" {
		c.Retrieval.Qdrant.Collection = "legal_chunks"
	}
	if c.Retrieval.Qdrant.TopK == 0 {
		c.Retrieval.Qdrant.TopK = 10
	}
	if c.Retrieval.Qdrant.Timeout == 0 {
		c.Retrieval.Qdrant.Timeout = 5 * time.Second
	}
	if c.Retrieval.Lexical.TopK == 0 {
		c.Retrieval.Lexical.TopK = 10
	}
	if c.Retrieval.Lexical.Timeout == 0 {
		c.Retrieval.Lexical.Timeout = 5 * time.Second
	}
	if c.Retrieval.Graph.MaxHops == 0 {
		c.Retrieval.Graph.MaxHops = 2
	}
	if c.Retrieval.Graph.Timeout == 0 {
		c.Retrieval.Graph.Timeout = 8 * time.Second
	}
	if c.Retrieval.Embeddings.CacheSize == 0 {
		c.Retrieval.Embeddings.CacheSize = 1024
	}
	if c.Retrieval.Embeddings.Timeout == 0 {
		c.Retrieval.Embeddings.Timeout = 10 * time.Second
	}
	if c.Observability.Tracing.ServiceName == "" {
		c.Observability.Tracing.ServiceName = c.Service.Name
	}
	if c.Observability.Metrics.Port == 0 {
		c.Observability.Metrics.Port = 9095
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
}

// Validate rejects configurations that would break loop bounds or gate
// semantics rather than letting them surface mid-pass.
func (c *Config) Validate() error {
	if c.Reasoning.MaxRethink < 0 {
		return fmt.Errorf("reasoning.max_rethink must be >= 0, got %d", c.Reasoning.MaxRethink)
	}
	if c.Reasoning.RetrievalConcurrency < 1 {
		return fmt.Errorf("reasoning.retrieval_concurrency must be >= 1, got %d", c.Reasoning.RetrievalConcurrency)
	}
	if c.Citer.MinCoverage < 0 || c.Citer.MinCoverage > 1 {
		return fmt.Errorf("citer.min_coverage must be in [0,1], got %v", c.Citer.MinCoverage)
	}
	if c.Citer.BlockCoverage < 0 || c.Citer.BlockCoverage > 1 {
		return fmt.Errorf("citer.block_coverage must be in [0,1], got %v", c.Citer.BlockCoverage)
	}
	if c.Citer.BlockCoverage > c.Citer.MinCoverage {
		return fmt.Errorf("citer.block_coverage (%v) must not exceed citer.min_coverage (%v)",
			c.Citer.BlockCoverage, c.Citer.MinCoverage)
	}
	if c.Memory.SimilarityThreshold < 0 || c.Memory.SimilarityThreshold > 1 {
		return fmt.Errorf("memory.similarity_threshold must be in [0,1], got %v", c.Memory.SimilarityThreshold)
	}
	for _, p := range c.LLM.Providers {
		if p.Kind != "openai" && p.Kind != "http" {
			return fmt.Errorf("llm provider %q: unknown kind %q", p.Name, p.Kind)
		}
	}
	switch c.Router.DefaultMode {
	case "auto", "manual":
	default:
		return fmt.Errorf("router.default_mode must be auto or manual, got %q", c.Router.DefaultMode)
	}
	return nil
}
