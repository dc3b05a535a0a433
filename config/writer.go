package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigYAML is the default configuration content.
const DefaultConfigYAML = `# sqlrecall configuration

embedding:
  # base_url: https://api.siliconflow.cn/v1 (or set EMBEDDING_BASE_URL env var)
  # api_key: your-api-key (or set EMBEDDING_API_KEY env var)
  model: BAAI/bge-large-zh-v1.5
  dimension: 1024
  max_retries: 2
  retry_interval: 2s
  timeout: 30s
  normalize: true
  strict_dimension: false
  cache_size: 100

chat:
  provider: qwen # qwen or deepseek
  # api_key: your-api-key (or set QWEN_API_KEY / DEEPSEEK_API_KEY env var)
  temperature: 0.6
  language: Chinese
  dialect: PostgreSQL

storage:
  backend: badger # badger or qdrant
  path: ./data
  min_score: -1
  qdrant:
    host: localhost
    port: 6334
    collection: sqlrecall_training
    use_tls: false
    # api_key: your-api-key (or set QDRANT_API_KEY env var)

batch:
  enabled: true
  size: 10
  workers: 4

retrieval:
  n_results: 6
`

// WriteDefault writes a default config file to path. It refuses to overwrite
// an existing file.
func WriteDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	if err := os.WriteFile(path, []byte(DefaultConfigYAML), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Write writes cfg to path, replacing any existing file. Secrets are written
// as well, so the file is created owner-readable only.
func Write(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Exists reports whether a config file exists at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
