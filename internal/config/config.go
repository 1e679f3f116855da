package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Default endpoints per provider when *_BASE_URL is unset.
const (
	GeminiOpenAIURL  = "https://generativelanguage.googleapis.com/v1beta/openai"
	OllamaDefaultURL = "http://localhost:11434"
)

// EnvPrefix is the envconfig prefix for every setting, e.g. RAG_SERVER_HTTP_PORT.
const EnvPrefix = "RAG_SERVER"

// Config holds the configuration for the RAG service.
// Environment variables are parsed from the RAG_SERVER_ prefix.
type Config struct {
	// Build target selects high-level environment: local, cloud-dev, cloud
	BuildTarget string `envconfig:"BUILD_TARGET" default:"local"`

	// Derived or override drivers
	StoreDriver string `envconfig:"STORE_DRIVER" default:"auto"`
	VectorStore string `envconfig:"VECTOR_STORE" default:"auto"`

	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string      `envconfig:"LOG_LEVEL" default:"info"`

	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8000"`

	// Session memory and knowledge-base registry
	SQLitePath  string `envconfig:"SQLITE_PATH" default:""`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`
	RedisAddr   string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB     int    `envconfig:"REDIS_DB" default:"0"`

	// Vector index
	KBDir       string `envconfig:"KB_DIR" default:"./chroma_db"`
	WeaviateURL string `envconfig:"WEAVIATE_URL" default:"weaviate:8080"`
	PGVectorDSN string `envconfig:"PGVECTOR_DSN" default:""`

	// Embeddings
	EmbedProvider    string `envconfig:"EMBED_PROVIDER" default:"openai"`
	EmbedModel       string `envconfig:"EMBED_MODEL" default:"text-embedding-004"`
	EmbedBaseURL     string `envconfig:"EMBED_BASE_URL" default:""`
	EmbedAPIKey      string `envconfig:"EMBED_API_KEY" default:""`
	EmbedMaxRetries  int    `envconfig:"EMBED_MAX_RETRIES" default:"1"`
	EmbedConcurrency int    `envconfig:"EMBED_CONCURRENCY" default:"4"`

	// Generation
	LLMProvider    string  `envconfig:"LLM_PROVIDER" default:"openai"`
	LLMModel       string  `envconfig:"LLM_MODEL" default:"gemini-2.0-flash"`
	LLMBaseURL     string  `envconfig:"LLM_BASE_URL" default:""`
	LLMAPIKey      string  `envconfig:"LLM_API_KEY" default:""`
	LLMTemperature float32 `envconfig:"LLM_TEMPERATURE" default:"0.7"`

	// Chunking and retrieval
	ChunkStrategy  string `envconfig:"CHUNK_STRATEGY" default:"recursive"`
	ChunkSize      int    `envconfig:"CHUNK_SIZE" default:"1000"`
	ChunkOverlap   int    `envconfig:"CHUNK_OVERLAP" default:"200"`
	RetrieveTopK   int    `envconfig:"RETRIEVE_TOP_K" default:"5"`
	KBLanguage     string `envconfig:"KB_LANGUAGE" default:"English"`
	AnswerLanguage string `envconfig:"ANSWER_LANGUAGE" default:"Korean"`

	// Per-call timeouts
	EmbedTimeoutSeconds     int `envconfig:"EMBED_TIMEOUT_SECONDS" default:"30"`
	TranslateTimeoutSeconds int `envconfig:"TRANSLATE_TIMEOUT_SECONDS" default:"30"`
	RetrieveTimeoutSeconds  int `envconfig:"RETRIEVE_TIMEOUT_SECONDS" default:"30"`
	GenerateTimeoutSeconds  int `envconfig:"GENERATE_TIMEOUT_SECONDS" default:"60"`
	SummarizeTimeoutSeconds int `envconfig:"SUMMARIZE_TIMEOUT_SECONDS" default:"60"`

	// How long a turn waits for an in-flight turn on the same session.
	SessionLockWaitSeconds int `envconfig:"SESSION_LOCK_WAIT_SECONDS" default:"30"`

	// Health and bootstrap
	HealthIntervalSeconds     int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"30"`
	HealthProbeTimeoutSeconds int `envconfig:"HEALTH_PROBE_TIMEOUT_SECONDS" default:"2"`
	BootstrapTimeoutSeconds   int `envconfig:"BOOTSTRAP_TIMEOUT_SECONDS" default:"5"`
}

// ResolveDefaults validates BuildTarget and derives StoreDriver and VectorStore when set to "auto" or empty.
func (c *Config) ResolveDefaults() error {
	var defaultStore, defaultVector string

	switch c.BuildTarget {
	case "local":
		defaultStore, defaultVector = "sqlite", "chromem"
	case "cloud-dev":
		defaultStore, defaultVector = "postgres", "pgvector"
	case "cloud":
		defaultStore, defaultVector = "postgres", "weaviate"
	default:
		return fmt.Errorf("unsupported BUILD_TARGET: %s", c.BuildTarget)
	}

	if c.StoreDriver == "" || c.StoreDriver == "auto" {
		c.StoreDriver = defaultStore
	}
	if c.VectorStore == "" || c.VectorStore == "auto" {
		c.VectorStore = defaultVector
	}
	if c.StoreDriver == "sqlite" && c.SQLitePath == "" {
		c.SQLitePath = "./data/syuka-rag.db"
	}
	if c.VectorStore == "pgvector" && c.PGVectorDSN == "" {
		c.PGVectorDSN = c.PostgresDSN
	}

	allowedStore := map[string]bool{"memory": true, "sqlite": true, "postgres": true, "redis": true}
	if !allowedStore[c.StoreDriver] {
		return fmt.Errorf("unsupported STORE_DRIVER: %s", c.StoreDriver)
	}
	allowedVector := map[string]bool{"chromem": true, "weaviate": true, "pgvector": true}
	if !allowedVector[c.VectorStore] {
		return fmt.Errorf("unsupported VECTOR_STORE: %s", c.VectorStore)
	}
	if c.ChunkSize <= 0 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("invalid chunking: size=%d overlap=%d", c.ChunkSize, c.ChunkOverlap)
	}
	for _, p := range []struct {
		name, provider string
		url            *string
	}{
		{"EMBED_PROVIDER", c.EmbedProvider, &c.EmbedBaseURL},
		{"LLM_PROVIDER", c.LLMProvider, &c.LLMBaseURL},
	} {
		switch p.provider {
		case "openai":
			if *p.url == "" {
				*p.url = GeminiOpenAIURL
			}
		case "ollama":
			if *p.url == "" {
				*p.url = OllamaDefaultURL
			}
		default:
			return fmt.Errorf("unsupported %s: %s", p.name, p.provider)
		}
	}
	if c.RetrieveTopK <= 0 {
		return fmt.Errorf("RETRIEVE_TOP_K must be > 0")
	}
	if c.EmbedMaxRetries < 0 {
		return fmt.Errorf("EMBED_MAX_RETRIES must be >= 0")
	}
	return nil
}

// New creates a new Config by parsing environment variables
// Environment variables should be prefixed with RAG_SERVER_
// Example: RAG_SERVER_HTTP_PORT, RAG_SERVER_LLM_MODEL
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("build_target", cfg.BuildTarget).
		Str("store_driver", cfg.StoreDriver).
		Str("vector_store", cfg.VectorStore).
		Str("environment", string(cfg.Environment)).
		Int("port", cfg.HTTPPort).
		Str("embed_provider", cfg.EmbedProvider).
		Str("embed_model", cfg.EmbedModel).
		Str("llm_provider", cfg.LLMProvider).
		Str("llm_model", cfg.LLMModel).
		Bool("llm_api_key_present", cfg.LLMAPIKey != "").
		Bool("postgres_dsn_present", cfg.PostgresDSN != "").
		Str("kb_dir", cfg.KBDir).
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config specifically for testing
func NewForTesting() *Config {
	cfg := &Config{
		Environment: EnvTesting,
		BuildTarget: "local",
		StoreDriver: "memory",
		VectorStore: "chromem",
		LogLevel:    "debug",
		HTTPPort:    8000,
	}

	cfg.EmbedProvider = "ollama"
	cfg.EmbedBaseURL = OllamaDefaultURL
	cfg.EmbedModel = "nomic-embed-text"
	cfg.EmbedMaxRetries = 1
	cfg.EmbedConcurrency = 2
	cfg.LLMProvider = "ollama"
	cfg.LLMBaseURL = OllamaDefaultURL
	cfg.LLMModel = "llama3.2"

	cfg.ChunkStrategy = "recursive"
	cfg.ChunkSize = 1000
	cfg.ChunkOverlap = 200
	cfg.RetrieveTopK = 5
	cfg.KBLanguage = "English"
	cfg.AnswerLanguage = "Korean"

	cfg.EmbedTimeoutSeconds = 5
	cfg.TranslateTimeoutSeconds = 5
	cfg.RetrieveTimeoutSeconds = 5
	cfg.GenerateTimeoutSeconds = 10
	cfg.SummarizeTimeoutSeconds = 10
	cfg.SessionLockWaitSeconds = 5

	cfg.HealthIntervalSeconds = 1
	cfg.HealthProbeTimeoutSeconds = 1
	cfg.BootstrapTimeoutSeconds = 1

	return cfg
}

// IsTesting returns true if the environment is set to testing
func (c *Config) IsTesting() bool {
	return c.Environment == EnvTesting
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// Timeouts groups the per-call collaborator bounds.
type Timeouts struct {
	Embed     time.Duration
	Translate time.Duration
	Retrieve  time.Duration
	Generate  time.Duration
	Summarize time.Duration
	LockWait  time.Duration
}

// Timeouts converts the *_SECONDS settings to durations.
func (c *Config) Timeouts() Timeouts {
	sec := func(n int) time.Duration { return time.Duration(n) * time.Second }
	return Timeouts{
		Embed:     sec(c.EmbedTimeoutSeconds),
		Translate: sec(c.TranslateTimeoutSeconds),
		Retrieve:  sec(c.RetrieveTimeoutSeconds),
		Generate:  sec(c.GenerateTimeoutSeconds),
		Summarize: sec(c.SummarizeTimeoutSeconds),
		LockWait:  sec(c.SessionLockWaitSeconds),
	}
}
