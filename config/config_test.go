package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/sqlrecall/ai"
	"github.com/poiesic/sqlrecall/storage"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"EMBEDDING_API_KEY", "EMBEDDING_BASE_URL", "QWEN_API_KEY", "DEEPSEEK_API_KEY", "QDRANT_API_KEY"} {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sqlrecall.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "BAAI/bge-large-zh-v1.5", cfg.Embedding.Model)
	assert.Equal(t, 1024, cfg.Embedding.Dimension)
	assert.Equal(t, 2*time.Second, cfg.Embedding.RetryInterval)
	assert.Equal(t, 100, cfg.Embedding.CacheSize)
	assert.Equal(t, "qwen", cfg.Chat.Provider)
	assert.Equal(t, 10, cfg.Batch.Size)
	assert.Equal(t, 4, cfg.Batch.Workers)
	assert.Equal(t, 6, cfg.Retrieval.NResults)
	assert.Equal(t, storage.BackendBadger, cfg.StorageBackend())
	assert.NoError(t, cfg.Validate())
}

func TestDefaultConfigYAMLMatchesDefault(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, DefaultConfigYAML)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
embedding:
  base_url: https://embed.example.com/v1
  api_key: file-key
  retry_interval: 500ms
  normalize: false
chat:
  provider: deepseek
storage:
  backend: qdrant
  qdrant:
    host: qdrant.internal
batch:
  size: 25
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://embed.example.com/v1", cfg.Embedding.BaseURL)
	assert.Equal(t, "file-key", cfg.Embedding.APIKey)
	assert.Equal(t, 500*time.Millisecond, cfg.Embedding.RetryInterval)
	assert.False(t, cfg.Embedding.Normalize)
	assert.Equal(t, "deepseek", cfg.Chat.Provider)
	assert.Equal(t, storage.BackendQdrant, cfg.StorageBackend())
	assert.Equal(t, "qdrant.internal", cfg.Storage.Qdrant.Host)
	// Unset fields keep their defaults.
	assert.Equal(t, 6334, cfg.Storage.Qdrant.Port)
	assert.Equal(t, 25, cfg.Batch.Size)
	assert.Equal(t, 4, cfg.Batch.Workers)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorContains(t, err, "config file not found")
	})

	t.Run("bad yaml", func(t *testing.T) {
		_, err := Load(writeFile(t, "embedding: [unclosed"))
		assert.ErrorContains(t, err, "parsing config file")
	})

	t.Run("invalid values", func(t *testing.T) {
		tests := map[string]string{
			"backend":   "storage:\n  backend: chroma\n",
			"provider":  "chat:\n  provider: gpt\n",
			"batch":     "batch:\n  size: 0\n",
			"workers":   "batch:\n  workers: 0\n",
			"min score": "storage:\n  min_score: 2\n",
			"n_results": "retrieval:\n  n_results: 0\n",
			"dimension": "embedding:\n  dimension: -1\n",
		}
		for name, content := range tests {
			t.Run(name, func(t *testing.T) {
				_, err := Load(writeFile(t, content))
				assert.Error(t, err)
			})
		}
	})
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("EMBEDDING_API_KEY", "env-embed")
	t.Setenv("EMBEDDING_BASE_URL", "https://env.example.com/v1")
	t.Setenv("QWEN_API_KEY", "env-qwen")
	t.Setenv("DEEPSEEK_API_KEY", "env-deepseek")
	t.Setenv("QDRANT_API_KEY", "env-qdrant")

	cfg := FromEnv()
	assert.Equal(t, "env-embed", cfg.Embedding.APIKey)
	assert.Equal(t, "https://env.example.com/v1", cfg.Embedding.BaseURL)
	assert.Equal(t, "env-qwen", cfg.Chat.APIKey)
	assert.Equal(t, "env-qdrant", cfg.Storage.Qdrant.APIKey)

	t.Run("provider picks its key", func(t *testing.T) {
		cfg, err := Load(writeFile(t, "chat:\n  provider: deepseek\n"))
		require.NoError(t, err)
		assert.Equal(t, "env-deepseek", cfg.Chat.APIKey)
	})

	t.Run("file wins over env", func(t *testing.T) {
		cfg, err := Load(writeFile(t, "embedding:\n  api_key: from-file\n"))
		require.NoError(t, err)
		assert.Equal(t, "from-file", cfg.Embedding.APIKey)
	})
}

func TestToAIConfig(t *testing.T) {
	cfg := Default()
	cfg.Embedding.BaseURL = "https://embed.example.com/v1/"
	cfg.Embedding.APIKey = "k"
	cfg.Embedding.StrictDimension = true
	cfg.Chat.Provider = "deepseek"
	cfg.Chat.APIKey = "c"

	aiCfg := cfg.ToAIConfig()
	assert.Equal(t, "https://embed.example.com/v1/embeddings", aiCfg.EmbeddingEndpoint())
	assert.Equal(t, 1024, aiCfg.EmbeddingDimension)
	assert.Equal(t, 2, aiCfg.MaxRetries)
	assert.True(t, aiCfg.NormalizeEmbeddings)
	assert.True(t, aiCfg.StrictDimension)
	assert.Equal(t, ai.ChatProviderDeepSeek, aiCfg.ChatProvider)
	assert.Equal(t, 0.6, aiCfg.Temperature)
	assert.NoError(t, aiCfg.Validate())
	assert.NoError(t, aiCfg.ValidateChat())
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "sqlrecall.yaml")

	require.NoError(t, WriteDefault(path))
	assert.True(t, Exists(path))

	err := WriteDefault(path)
	assert.ErrorContains(t, err, "already exists")
}

func TestWriteRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "sqlrecall.yaml")

	cfg := Default()
	cfg.Storage.Backend = "qdrant"
	cfg.Batch.Enabled = false
	cfg.Embedding.Timeout = 45 * time.Second
	require.NoError(t, Write(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
