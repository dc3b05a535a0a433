// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ai

import (
	"fmt"
	"strings"
	"time"
)

const embeddingsPath = "/embeddings"

// Config holds configuration for the embedding service and the chat backend.
type Config struct {
	// EmbeddingHost is the base URL of the OpenAI-compatible embedding API.
	// Example: "https://api.siliconflow.cn/v1" or the full ".../v1/embeddings" endpoint
	EmbeddingHost string

	// EmbeddingModel is the model identifier sent with every embedding request.
	// Example: "BAAI/bge-large-zh-v1.5", "text-embedding-3-small"
	EmbeddingModel string

	// EmbeddingAPIKey is sent as a bearer token.
	EmbeddingAPIKey string

	// EmbeddingDimension is the expected vector length. Zero means unknown:
	// the embedder learns it from the first successful response.
	EmbeddingDimension int

	// MaxRetries is the number of additional attempts after the first one.
	// Default: 2
	MaxRetries int

	// RetryInterval is the base backoff delay. Attempt n waits
	// RetryInterval * 2^(n-1).
	// Default: 2s
	RetryInterval time.Duration

	// RequestTimeout bounds a single HTTP attempt.
	// Default: 30s
	RequestTimeout time.Duration

	// NormalizeEmbeddings scales every vector to unit L2 norm.
	// Default: true
	NormalizeEmbeddings bool

	// StrictDimension pads or truncates vectors whose length differs from the
	// known dimension. When false they are returned as received.
	StrictDimension bool

	// ChatProvider selects default host and model for the chat backend.
	ChatProvider ChatProvider

	// ChatHost is the base URL of the OpenAI-compatible chat API.
	// Empty means the provider default.
	ChatHost string

	// ChatModel is the chat model identifier. Empty means the provider default.
	ChatModel string

	// ChatAPIKey is the bearer token for the chat API.
	ChatAPIKey string

	// Temperature is the sampling temperature for SQL generation.
	// Default: 0.6
	Temperature float64

	// Language is the language the chat backend answers in.
	// Default: "Chinese"
	Language string

	// SQLDialect names the database the generated SQL must run on.
	// Default: "PostgreSQL"
	SQLDialect string
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithEmbeddingAPIKey sets the embedding API key.
func WithEmbeddingAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingAPIKey = key
	}
}

// WithEmbeddingDimension sets the expected embedding dimension. Zero lets the
// embedder learn it.
func WithEmbeddingDimension(dim int) ConfigOption {
	return func(c *Config) {
		c.EmbeddingDimension = dim
	}
}

// WithRetry sets the retry budget and base backoff interval.
func WithRetry(maxRetries int, interval time.Duration) ConfigOption {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryInterval = interval
	}
}

// WithRequestTimeout sets the per-attempt HTTP timeout.
func WithRequestTimeout(timeout time.Duration) ConfigOption {
	return func(c *Config) {
		c.RequestTimeout = timeout
	}
}

// WithNormalization toggles L2 normalization of embeddings.
func WithNormalization(enabled bool) ConfigOption {
	return func(c *Config) {
		c.NormalizeEmbeddings = enabled
	}
}

// WithStrictDimension toggles padding/truncation of mismatched vectors.
func WithStrictDimension(strict bool) ConfigOption {
	return func(c *Config) {
		c.StrictDimension = strict
	}
}

// WithChatProvider selects the chat provider.
func WithChatProvider(p ChatProvider) ConfigOption {
	return func(c *Config) {
		c.ChatProvider = p
	}
}

// WithChatHost sets the chat service host URL.
func WithChatHost(host string) ConfigOption {
	return func(c *Config) {
		c.ChatHost = host
	}
}

// WithChatModel sets the chat model identifier.
func WithChatModel(model string) ConfigOption {
	return func(c *Config) {
		c.ChatModel = model
	}
}

// WithChatAPIKey sets the chat API key.
func WithChatAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.ChatAPIKey = key
	}
}

// WithTemperature sets the chat sampling temperature.
func WithTemperature(t float64) ConfigOption {
	return func(c *Config) {
		c.Temperature = t
	}
}

// WithLanguage sets the response language of the chat backend.
func WithLanguage(lang string) ConfigOption {
	return func(c *Config) {
		c.Language = lang
	}
}

// WithSQLDialect sets the SQL dialect used in chat prompts.
func WithSQLDialect(dialect string) ConfigOption {
	return func(c *Config) {
		c.SQLDialect = dialect
	}
}

// DefaultConfig returns a Config with the defaults used by the training tools.
// Hosts and API keys have no defaults and must be supplied.
func DefaultConfig() *Config {
	return &Config{
		EmbeddingModel:      "BAAI/bge-large-zh-v1.5",
		MaxRetries:          2,
		RetryInterval:       2 * time.Second,
		RequestTimeout:      30 * time.Second,
		NormalizeEmbeddings: true,
		ChatProvider:        ChatProviderQwen,
		Temperature:         0.6,
		Language:            "Chinese",
		SQLDialect:          "PostgreSQL",
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//   cfg := NewConfig(
//       WithEmbeddingHost("https://api.siliconflow.cn/v1"),
//       WithEmbeddingAPIKey(os.Getenv("EMBEDDING_API_KEY")),
//   )
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// EmbeddingEndpoint returns the full embeddings URL. Trailing slashes are
// trimmed first; a host then ending in /embeddings is kept as is, otherwise
// /embeddings is appended.
func (c *Config) EmbeddingEndpoint() string {
	host := strings.TrimRight(strings.TrimSpace(c.EmbeddingHost), "/")
	if host == "" {
		return ""
	}
	if strings.HasSuffix(host, embeddingsPath) {
		return host
	}
	return host + embeddingsPath
}

// EmbeddingBaseURL returns the endpoint without its /embeddings suffix, which
// is the form OpenAI client libraries expect.
func (c *Config) EmbeddingBaseURL() string {
	return strings.TrimSuffix(c.EmbeddingEndpoint(), embeddingsPath)
}

// Normalize fills provider defaults for the chat host and model and clamps
// negative retry settings.
func (c *Config) Normalize() {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryInterval < 0 {
		c.RetryInterval = 0
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.SQLDialect == "" {
		c.SQLDialect = "SQL"
	}
	if settings, ok := DefaultChatSettings(c.ChatProvider); ok {
		if c.ChatHost == "" {
			c.ChatHost = settings.Host
		}
		if c.ChatModel == "" {
			c.ChatModel = settings.Model
		}
	}
}

// Validate checks that the embedding settings are complete. It runs before
// any network attempt.
func (c *Config) Validate() error {
	c.Normalize()

	if strings.TrimSpace(c.EmbeddingAPIKey) == "" {
		return fmt.Errorf("%w: EmbeddingAPIKey is required", ErrConfiguration)
	}
	if c.EmbeddingEndpoint() == "" {
		return fmt.Errorf("%w: EmbeddingHost is required", ErrConfiguration)
	}
	if strings.TrimSpace(c.EmbeddingModel) == "" {
		return fmt.Errorf("%w: EmbeddingModel is required", ErrConfiguration)
	}
	if c.EmbeddingDimension < 0 {
		return fmt.Errorf("%w: EmbeddingDimension must not be negative", ErrConfiguration)
	}
	return nil
}

// ValidateChat checks that the chat settings are complete.
func (c *Config) ValidateChat() error {
	c.Normalize()

	if _, ok := DefaultChatSettings(c.ChatProvider); !ok {
		return fmt.Errorf("%w: unsupported chat provider %q", ErrConfiguration, c.ChatProvider)
	}
	if strings.TrimSpace(c.ChatAPIKey) == "" {
		return fmt.Errorf("%w: ChatAPIKey is required for %s", ErrConfiguration, c.ChatProvider)
	}
	if c.ChatHost == "" {
		return fmt.Errorf("%w: ChatHost is required", ErrConfiguration)
	}
	if c.ChatModel == "" {
		return fmt.Errorf("%w: ChatModel is required", ErrConfiguration)
	}
	return nil
}
