package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"

	"github.com/ternarybob/scientia/internal/models"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Server      ServerConfig     `toml:"server"`
	Storage     StorageConfig    `toml:"storage"`
	Vector      VectorConfig     `toml:"vector"`
	Embedding   EmbeddingConfig  `toml:"embedding"`
	Chunking    ChunkingConfig   `toml:"chunking"`
	Search      SearchConfig     `toml:"search"`
	Cache       CacheConfig      `toml:"cache"`
	Ingest      IngestConfig     `toml:"ingest"`
	Processing  ProcessingConfig `toml:"processing"`
	Logging     LoggingConfig    `toml:"logging"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"gt=0,lte=65535"`
	Host string `toml:"host" validate:"required"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"`         // Delete database on startup for clean test runs
}

// VectorConfig selects and parameterizes the vector backend. Dimension
// must match the embedding provider's output size; a mismatch is a
// startup-time configuration error, not a runtime error.
type VectorConfig struct {
	Backend    string `toml:"backend" validate:"oneof=badger milvus"`
	Endpoint   string `toml:"endpoint"`   // Networked backends only, e.g. "localhost:19530"
	Dimension  int    `toml:"dimension" validate:"gt=0"`
	Collection string `toml:"collection" validate:"required"`
	APIKey     string `toml:"api_key"`
}

// EmbeddingConfig parameterizes the embedding provider. Provider "none"
// runs the engine keyword-only: semantic search degrades and the semantic
// chunk strategy is unavailable.
type EmbeddingConfig struct {
	Provider   string  `toml:"provider" validate:"oneof=gemini none"`
	APIKey     string  `toml:"api_key"`
	Model      string  `toml:"model"`
	Dimension  int     `toml:"dimension" validate:"gte=0"`
	RateLimit  float64 `toml:"rate_limit"`  // Requests per second against the provider
	MaxRetries int     `toml:"max_retries"` // Attempts per embedding call before giving up
}

type ChunkingConfig struct {
	Strategy     string `toml:"strategy" validate:"oneof=fixed sentence semantic"`
	Size         int    `toml:"size" validate:"gt=0"`
	Overlap      int    `toml:"overlap" validate:"gte=0"`
	MaxChunkSize int    `toml:"max_chunk_size" validate:"gt=0"`
}

// SearchConfig contains hybrid search tuning
type SearchConfig struct {
	DefaultTopK  int     `toml:"default_top_k" validate:"gt=0"`
	DefaultAlpha float64 `toml:"default_alpha" validate:"gte=0,lte=1"`
	RRFConstant  int     `toml:"rrf_constant" validate:"gt=0"` // Rank dampening constant in 1/(rank+k)
	BM25K1       float64 `toml:"bm25_k1" validate:"gt=0"`
	BM25B        float64 `toml:"bm25_b" validate:"gte=0,lte=1"`
}

type CacheConfig struct {
	Capacity int    `toml:"capacity" validate:"gt=0"`
	TTL      string `toml:"ttl"` // e.g. "5m"
}

// TTLDuration parses the configured TTL, falling back to the default.
func (c *CacheConfig) TTLDuration() time.Duration {
	d, err := time.ParseDuration(c.TTL)
	if err != nil || d <= 0 {
		return DefaultCacheTTL
	}
	return d
}

type IngestConfig struct {
	MaxConcurrency int `toml:"max_concurrency" validate:"gt=0"` // Concurrent in-flight documents per batch
}

// ProcessingConfig schedules background maintenance (cache sweep and
// keyword index rebuild from the document store).
type ProcessingConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // Cron schedule format
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// NewDefaultConfig returns a config populated with defaults; files, env,
// and CLI flags layer on top.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: DefaultServerPort,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{Path: "./data/scientia"},
		},
		Vector: VectorConfig{
			Backend:    "badger",
			Dimension:  DefaultVectorDimension,
			Collection: "knowledge",
		},
		Embedding: EmbeddingConfig{
			Provider:   "none",
			Model:      DefaultEmbeddingModel,
			Dimension:  DefaultVectorDimension,
			RateLimit:  DefaultEmbeddingRateLimit,
			MaxRetries: DefaultEmbeddingRetries,
		},
		Chunking: ChunkingConfig{
			Strategy:     "fixed",
			Size:         DefaultChunkSize,
			Overlap:      DefaultChunkOverlap,
			MaxChunkSize: DefaultMaxChunkSize,
		},
		Search: SearchConfig{
			DefaultTopK:  DefaultTopK,
			DefaultAlpha: DefaultAlpha,
			RRFConstant:  DefaultRRFConstant,
			BM25K1:       DefaultBM25K1,
			BM25B:        DefaultBM25B,
		},
		Cache: CacheConfig{
			Capacity: DefaultCacheCapacity,
			TTL:      DefaultCacheTTL.String(),
		},
		Ingest: IngestConfig{
			MaxConcurrency: DefaultIngestConcurrency,
		},
		Processing: ProcessingConfig{
			Enabled:  false,
			Schedule: "@every 10m",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}

// LoadFromFiles builds the configuration: defaults, then each file in
// order (later files override earlier ones), then environment variables.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("SCIENTIA_ENV"); env != "" {
		config.Environment = env
	}
	if port := os.Getenv("SCIENTIA_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("SCIENTIA_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if path := os.Getenv("SCIENTIA_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}
	if endpoint := os.Getenv("SCIENTIA_VECTOR_ENDPOINT"); endpoint != "" {
		config.Vector.Endpoint = endpoint
	}
	if key := os.Getenv("SCIENTIA_VECTOR_API_KEY"); key != "" {
		config.Vector.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		config.Embedding.APIKey = key
	}
	if level := os.Getenv("SCIENTIA_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}

// Validate checks structural constraints plus the cross-field invariants
// the validator tags cannot express. Violations are fatal at startup.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return &models.ConfigurationError{Field: "config", Reason: err.Error()}
	}

	if c.Chunking.Overlap >= c.Chunking.Size {
		return &models.ConfigurationError{
			Field:  "chunking.overlap",
			Reason: fmt.Sprintf("overlap (%d) must be smaller than size (%d)", c.Chunking.Overlap, c.Chunking.Size),
		}
	}

	if c.Embedding.Provider != "none" {
		if c.Embedding.APIKey == "" {
			return &models.ConfigurationError{
				Field:  "embedding.api_key",
				Reason: "required when an embedding provider is configured",
			}
		}
		if c.Embedding.Dimension != c.Vector.Dimension {
			return &models.ConfigurationError{
				Field:  "embedding.dimension",
				Reason: fmt.Sprintf("embedding dimension (%d) does not match vector backend dimension (%d)", c.Embedding.Dimension, c.Vector.Dimension),
			}
		}
	}

	if c.Vector.Backend == "milvus" && c.Vector.Endpoint == "" {
		return &models.ConfigurationError{
			Field:  "vector.endpoint",
			Reason: "required for the milvus backend",
		}
	}

	return nil
}
