package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return NewConfig(
		WithEmbeddingHost("http://localhost:8080/v1"),
		WithEmbeddingAPIKey("sk-test"),
	)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "BAAI/bge-large-zh-v1.5", cfg.EmbeddingModel)
	assert.Equal(t, 0, cfg.EmbeddingDimension)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.RetryInterval)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.True(t, cfg.NormalizeEmbeddings)
	assert.False(t, cfg.StrictDimension)
	assert.Equal(t, ChatProviderQwen, cfg.ChatProvider)
	assert.Equal(t, 0.6, cfg.Temperature)
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()

		assert.NotNil(t, cfg)
		assert.Equal(t, 2, cfg.MaxRetries)
		assert.Empty(t, cfg.EmbeddingHost)
	})

	t.Run("with multiple options", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingHost("http://embed:8080/v1"),
			WithEmbeddingModel("custom-embed"),
			WithEmbeddingAPIKey("key"),
			WithEmbeddingDimension(768),
			WithRetry(5, time.Second),
			WithRequestTimeout(time.Minute),
			WithNormalization(false),
			WithStrictDimension(true),
			WithChatProvider(ChatProviderDeepSeek),
			WithChatHost("http://chat:9090/v1"),
			WithChatModel("deepseek-reasoner"),
			WithChatAPIKey("chat-key"),
			WithTemperature(0.1),
			WithLanguage("English"),
		)

		assert.Equal(t, "http://embed:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "custom-embed", cfg.EmbeddingModel)
		assert.Equal(t, "key", cfg.EmbeddingAPIKey)
		assert.Equal(t, 768, cfg.EmbeddingDimension)
		assert.Equal(t, 5, cfg.MaxRetries)
		assert.Equal(t, time.Second, cfg.RetryInterval)
		assert.Equal(t, time.Minute, cfg.RequestTimeout)
		assert.False(t, cfg.NormalizeEmbeddings)
		assert.True(t, cfg.StrictDimension)
		assert.Equal(t, ChatProviderDeepSeek, cfg.ChatProvider)
		assert.Equal(t, "http://chat:9090/v1", cfg.ChatHost)
		assert.Equal(t, "deepseek-reasoner", cfg.ChatModel)
		assert.Equal(t, "chat-key", cfg.ChatAPIKey)
		assert.Equal(t, 0.1, cfg.Temperature)
		assert.Equal(t, "English", cfg.Language)
	})
}

func TestEmbeddingEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		expected string
		baseURL  string
	}{
		{
			name:     "base url",
			host:     "http://localhost:8080/v1",
			expected: "http://localhost:8080/v1/embeddings",
			baseURL:  "http://localhost:8080/v1",
		},
		{
			name:     "trailing slash",
			host:     "http://localhost:8080/v1/",
			expected: "http://localhost:8080/v1/embeddings",
			baseURL:  "http://localhost:8080/v1",
		},
		{
			name:     "full endpoint with trailing slash",
			host:     "https://x/v1/embeddings/",
			expected: "https://x/v1/embeddings",
			baseURL:  "https://x/v1",
		},
		{
			name:     "several trailing slashes",
			host:     "http://localhost:8080/v1///",
			expected: "http://localhost:8080/v1/embeddings",
			baseURL:  "http://localhost:8080/v1",
		},
		{
			name:     "already full endpoint",
			host:     "http://localhost:8080/v1/embeddings",
			expected: "http://localhost:8080/v1/embeddings",
			baseURL:  "http://localhost:8080/v1",
		},
		{
			name:     "empty",
			host:     "",
			expected: "",
			baseURL:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{EmbeddingHost: tt.host}

			assert.Equal(t, tt.expected, cfg.EmbeddingEndpoint())
			assert.Equal(t, tt.baseURL, cfg.EmbeddingBaseURL())
		})
	}
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		cfg := validConfig()

		err := cfg.Validate()
		assert.NoError(t, err)
	})

	t.Run("missing api key", func(t *testing.T) {
		cfg := validConfig()
		cfg.EmbeddingAPIKey = "  "

		err := cfg.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConfiguration)
		assert.Contains(t, err.Error(), "EmbeddingAPIKey")
	})

	t.Run("missing embedding host", func(t *testing.T) {
		cfg := validConfig()
		cfg.EmbeddingHost = ""

		err := cfg.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConfiguration)
		assert.Contains(t, err.Error(), "EmbeddingHost")
	})

	t.Run("missing embedding model", func(t *testing.T) {
		cfg := validConfig()
		cfg.EmbeddingModel = ""

		err := cfg.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConfiguration)
		assert.Contains(t, err.Error(), "EmbeddingModel")
	})

	t.Run("negative dimension", func(t *testing.T) {
		cfg := validConfig()
		cfg.EmbeddingDimension = -1

		err := cfg.Validate()
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("negative retries are clamped", func(t *testing.T) {
		cfg := validConfig()
		cfg.MaxRetries = -3

		require.NoError(t, cfg.Validate())
		assert.Equal(t, 0, cfg.MaxRetries)
	})
}

func TestConfigValidateChat(t *testing.T) {
	t.Run("provider defaults fill host and model", func(t *testing.T) {
		cfg := NewConfig(WithChatProvider(ChatProviderDeepSeek), WithChatAPIKey("k"))

		require.NoError(t, cfg.ValidateChat())
		assert.Equal(t, "https://api.deepseek.com/v1", cfg.ChatHost)
		assert.Equal(t, "deepseek-chat", cfg.ChatModel)
	})

	t.Run("explicit host wins", func(t *testing.T) {
		cfg := NewConfig(WithChatHost("http://proxy/v1"), WithChatAPIKey("k"))

		require.NoError(t, cfg.ValidateChat())
		assert.Equal(t, "http://proxy/v1", cfg.ChatHost)
		assert.Equal(t, "qwen-plus", cfg.ChatModel)
	})

	t.Run("missing key", func(t *testing.T) {
		cfg := NewConfig()

		err := cfg.ValidateChat()
		assert.ErrorIs(t, err, ErrConfiguration)
		assert.Contains(t, err.Error(), "ChatAPIKey")
	})

	t.Run("unsupported provider", func(t *testing.T) {
		cfg := NewConfig(WithChatProvider("mistral"), WithChatAPIKey("k"))

		err := cfg.ValidateChat()
		assert.ErrorIs(t, err, ErrConfiguration)
	})
}

func TestParseChatProvider(t *testing.T) {
	p, err := ParseChatProvider(" Qwen ")
	require.NoError(t, err)
	assert.Equal(t, ChatProviderQwen, p)

	p, err = ParseChatProvider("deepseek")
	require.NoError(t, err)
	assert.Equal(t, ChatProviderDeepSeek, p)

	_, err = ParseChatProvider("llama")
	assert.ErrorIs(t, err, ErrConfiguration)
}
