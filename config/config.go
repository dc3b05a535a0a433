// Package config loads sqlrecall settings from a YAML file and the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/poiesic/sqlrecall/ai"
	"github.com/poiesic/sqlrecall/storage"
)

// DefaultConfigFile is the config file read when no path is given.
const DefaultConfigFile = "sqlrecall.yaml"

// Config holds static configuration (read-only after load).
type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chat      ChatConfig      `yaml:"chat"`
	Storage   StorageConfig   `yaml:"storage"`
	Batch     BatchConfig     `yaml:"batch"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
}

// EmbeddingConfig configures the OpenAI-compatible embedding service.
type EmbeddingConfig struct {
	BaseURL       string        `yaml:"base_url,omitempty"`
	Model         string        `yaml:"model"`
	APIKey        string        `yaml:"api_key,omitempty"`
	Dimension     int           `yaml:"dimension"`
	MaxRetries    int           `yaml:"max_retries"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Timeout       time.Duration `yaml:"timeout"`
	Normalize     bool          `yaml:"normalize"`
	// StrictDimension pads or truncates vectors to the configured dimension.
	StrictDimension bool `yaml:"strict_dimension"`
	// CacheSize is the number of embeddings kept in memory. Zero disables the cache.
	CacheSize int `yaml:"cache_size"`
}

// ChatConfig configures the chat model used for SQL and question generation.
type ChatConfig struct {
	Provider    string  `yaml:"provider"`
	BaseURL     string  `yaml:"base_url,omitempty"`
	Model       string  `yaml:"model,omitempty"`
	APIKey      string  `yaml:"api_key,omitempty"`
	Temperature float64 `yaml:"temperature"`
	Language    string  `yaml:"language"`
	Dialect     string  `yaml:"dialect"`
}

// StorageConfig selects and configures the vector repository.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	// Path is the badger data directory.
	Path     string       `yaml:"path"`
	MinScore float32      `yaml:"min_score"`
	Qdrant   QdrantConfig `yaml:"qdrant"`
}

// QdrantConfig holds configuration for the Qdrant vector database.
type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Collection string `yaml:"collection"`
	APIKey     string `yaml:"api_key,omitempty"`
	UseTLS     bool   `yaml:"use_tls"`
}

// BatchConfig configures training dispatch.
type BatchConfig struct {
	Enabled bool `yaml:"enabled"`
	Size    int  `yaml:"size"`
	Workers int  `yaml:"workers"`
}

// RetrievalConfig configures question answering.
type RetrievalConfig struct {
	// NResults is the number of records retrieved per kind.
	NResults int `yaml:"n_results"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Model:         "BAAI/bge-large-zh-v1.5",
			Dimension:     1024,
			MaxRetries:    2,
			RetryInterval: 2 * time.Second,
			Timeout:       30 * time.Second,
			Normalize:     true,
			CacheSize:     100,
		},
		Chat: ChatConfig{
			Provider:    string(ai.ChatProviderQwen),
			Temperature: 0.6,
			Language:    "Chinese",
			Dialect:     "PostgreSQL",
		},
		Storage: StorageConfig{
			Backend:  string(storage.BackendBadger),
			Path:     "./data",
			MinScore: -1,
			Qdrant: QdrantConfig{
				Host:       "localhost",
				Port:       6334,
				Collection: "sqlrecall_training",
			},
		},
		Batch: BatchConfig{
			Enabled: true,
			Size:    10,
			Workers: 4,
		},
		Retrieval: RetrievalConfig{
			NResults: 6,
		},
	}
}

// FromEnv returns the defaults with environment overrides applied.
func FromEnv() *Config {
	cfg := Default()
	cfg.applyEnvOverrides()
	return cfg
}

// Load loads configuration from the YAML file at path. Missing fields keep
// their defaults and environment variables fill empty secrets.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s (run 'sqlrecall init' first)", path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Start with defaults
	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides fills settings left empty in the file from the environment.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("EMBEDDING_API_KEY"); key != "" && c.Embedding.APIKey == "" {
		c.Embedding.APIKey = key
	}
	if url := os.Getenv("EMBEDDING_BASE_URL"); url != "" && c.Embedding.BaseURL == "" {
		c.Embedding.BaseURL = url
	}
	if c.Chat.APIKey == "" {
		if settings, ok := ai.DefaultChatSettings(ai.ChatProvider(strings.ToLower(c.Chat.Provider))); ok {
			c.Chat.APIKey = os.Getenv(settings.EnvKey)
		}
	}
	if key := os.Getenv("QDRANT_API_KEY"); key != "" && c.Storage.Qdrant.APIKey == "" {
		c.Storage.Qdrant.APIKey = key
	}
}

// Validate checks values that have no sensible fallback. Credentials are
// checked later, by the component that needs them.
func (c *Config) Validate() error {
	if _, err := storage.ParseBackend(c.Storage.Backend); err != nil {
		return fmt.Errorf("invalid storage.backend: %w", err)
	}
	if _, err := ai.ParseChatProvider(c.Chat.Provider); err != nil {
		return fmt.Errorf("invalid chat.provider: %w", err)
	}
	if c.Embedding.Dimension < 0 {
		return fmt.Errorf("embedding.dimension must not be negative, got %d", c.Embedding.Dimension)
	}
	if c.Embedding.CacheSize < 0 {
		return fmt.Errorf("embedding.cache_size must not be negative, got %d", c.Embedding.CacheSize)
	}
	if c.Storage.MinScore < -1 || c.Storage.MinScore > 1 {
		return fmt.Errorf("storage.min_score must be within [-1, 1], got %v", c.Storage.MinScore)
	}
	if c.Batch.Size < 1 {
		return fmt.Errorf("batch.size must be at least 1, got %d", c.Batch.Size)
	}
	if c.Batch.Workers < 1 {
		return fmt.Errorf("batch.workers must be at least 1, got %d", c.Batch.Workers)
	}
	if c.Retrieval.NResults < 1 {
		return fmt.Errorf("retrieval.n_results must be at least 1, got %d", c.Retrieval.NResults)
	}
	return nil
}

// StorageBackend returns the parsed storage backend.
func (c *Config) StorageBackend() storage.Backend {
	backend, err := storage.ParseBackend(c.Storage.Backend)
	if err != nil {
		return storage.BackendBadger
	}
	return backend
}

// ToAIConfig maps the embedding and chat sections onto an ai.Config.
func (c *Config) ToAIConfig() *ai.Config {
	provider, err := ai.ParseChatProvider(c.Chat.Provider)
	if err != nil {
		provider = ai.ChatProviderQwen
	}
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.Embedding.BaseURL),
		ai.WithEmbeddingModel(c.Embedding.Model),
		ai.WithEmbeddingAPIKey(c.Embedding.APIKey),
		ai.WithEmbeddingDimension(c.Embedding.Dimension),
		ai.WithRetry(c.Embedding.MaxRetries, c.Embedding.RetryInterval),
		ai.WithRequestTimeout(c.Embedding.Timeout),
		ai.WithNormalization(c.Embedding.Normalize),
		ai.WithStrictDimension(c.Embedding.StrictDimension),
		ai.WithChatProvider(provider),
		ai.WithChatHost(c.Chat.BaseURL),
		ai.WithChatModel(c.Chat.Model),
		ai.WithChatAPIKey(c.Chat.APIKey),
		ai.WithTemperature(c.Chat.Temperature),
		ai.WithLanguage(c.Chat.Language),
		ai.WithSQLDialect(c.Chat.Dialect),
	)
}
