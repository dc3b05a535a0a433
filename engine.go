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


package sqlrecall

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/sqlrecall/ai"
	"github.com/poiesic/sqlrecall/ai/cache"
	"github.com/poiesic/sqlrecall/ai/openai"
	"github.com/poiesic/sqlrecall/config"
	"github.com/poiesic/sqlrecall/core"
	"github.com/poiesic/sqlrecall/ingestion"
	"github.com/poiesic/sqlrecall/storage"
	"github.com/poiesic/sqlrecall/storage/badger"
	"github.com/poiesic/sqlrecall/storage/qdrant"
	"github.com/poiesic/sqlrecall/vectorstore"
)

// Engine ties one chat backend and one vector store together. The backends
// are chosen from configuration when the engine is built.
type Engine struct {
	cfg      *config.Config
	repo     storage.Repository
	provider ai.Provider
	embedder ai.Embedder
	store    *vectorstore.Store
	base     *slog.Logger
	logger   *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	provider ai.Provider
	repo     storage.Repository
	logger   *slog.Logger
}

// WithProvider supplies the AI provider instead of building one from config.
func WithProvider(provider ai.Provider) EngineOption {
	return func(o *engineOptions) {
		o.provider = provider
	}
}

// WithRepository supplies the repository instead of opening one from config.
// The engine takes ownership and closes it.
func WithRepository(repo storage.Repository) EngineOption {
	return func(o *engineOptions) {
		o.repo = repo
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// NewEngine builds an engine from cfg. A nil cfg means config.Default().
func NewEngine(cfg *config.Config, opts ...EngineOption) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &engineOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	logger := options.logger.With("component", "engine")

	// Create AI provider with configured settings
	provider := options.provider
	if provider == nil {
		var err error
		provider, err = newProvider(cfg, logger)
		if err != nil {
			return nil, err
		}
	}

	embedder := provider.Embedder()
	if cfg.Embedding.CacheSize > 0 {
		cached, err := cache.New(embedder, cfg.Embedding.CacheSize)
		if err != nil {
			provider.Close()
			return nil, err
		}
		embedder = cached
	}

	// Open repository
	repo := options.repo
	if repo == nil {
		var err error
		repo, err = openRepository(cfg)
		if err != nil {
			provider.Close()
			return nil, err
		}
	}

	store, err := vectorstore.NewStore(embedder, repo,
		vectorstore.WithLogger(options.logger),
		vectorstore.WithMinScore(cfg.Storage.MinScore),
	)
	if err != nil {
		repo.Close()
		provider.Close()
		return nil, err
	}

	logger.Info("engine ready",
		"backend", cfg.StorageBackend(),
		"chat", provider.ChatBackend() != nil,
		"cache_size", cfg.Embedding.CacheSize)

	return &Engine{
		cfg:      cfg,
		repo:     repo,
		provider: provider,
		embedder: embedder,
		store:    store,
		base:     options.logger,
		logger:   logger,
	}, nil
}

// newProvider builds the OpenAI-compatible provider. Without usable chat
// settings it falls back to an embedding-only provider, which is enough for
// every training path except raw SQL.
func newProvider(cfg *config.Config, logger *slog.Logger) (ai.Provider, error) {
	aiCfg := cfg.ToAIConfig()
	if err := aiCfg.ValidateChat(); err != nil {
		logger.Info("chat backend not configured, continuing with embeddings only", "reason", err)
		return openai.NewEmbeddingProvider(aiCfg)
	}
	return openai.NewProvider(aiCfg)
}

func openRepository(cfg *config.Config) (storage.Repository, error) {
	switch cfg.StorageBackend() {
	case storage.BackendQdrant:
		q := cfg.Storage.Qdrant
		return qdrant.NewRepository(qdrant.Config{
			Host:       q.Host,
			Port:       q.Port,
			Collection: q.Collection,
			APIKey:     q.APIKey,
			UseTLS:     q.UseTLS,
		})
	default:
		return badger.NewRepository(cfg.Storage.Path)
	}
}

// Close releases the provider and the repository.
func (e *Engine) Close() error {
	// Close AI provider first
	if err := e.provider.Close(); err != nil {
		e.logger.Error("error closing AI provider", "err", err)
	}

	if err := e.repo.Close(); err != nil {
		e.logger.Error("error closing repository", "err", err)
		return err
	}
	return nil
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Store returns the vector store.
func (e *Engine) Store() *vectorstore.Store {
	return e.store
}

// Embedder returns the embedder used by the store, including its cache.
func (e *Engine) Embedder() ai.Embedder {
	return e.embedder
}

// ChatBackend returns the chat backend, or nil when none is configured.
func (e *Engine) ChatBackend() ai.ChatBackend {
	return e.provider.ChatBackend()
}

// NewAccumulator creates an accumulator feeding the store. Batch settings come
// from config; opts are applied after them.
func (e *Engine) NewAccumulator(opts ...ingestion.Option) (*ingestion.Accumulator, error) {
	batch := e.cfg.Batch
	defaults := []ingestion.Option{
		ingestion.WithBatchSize(batch.Size),
		ingestion.WithPoolSize(batch.Workers),
		ingestion.WithBatching(batch.Enabled),
		ingestion.WithLogger(e.base),
	}
	return ingestion.NewAccumulator(e.store, append(defaults, opts...)...)
}

// NewTrainer creates a trainer with its own accumulator. The caller must call
// Shutdown on it.
func (e *Engine) NewTrainer(opts ...ingestion.Option) (*ingestion.Trainer, error) {
	acc, err := e.NewAccumulator(opts...)
	if err != nil {
		return nil, err
	}
	return ingestion.NewTrainer(acc, e.ChatBackend())
}

// Retrieve gathers the training context for question.
func (e *Engine) Retrieve(ctx context.Context, question string, monitor vectorstore.RetrievalMonitor) (ai.RetrievalContext, error) {
	if strings.TrimSpace(question) == "" {
		return ai.RetrievalContext{}, core.ErrEmptyQuestion
	}
	return e.store.RetrievalContextWithMonitor(ctx, question, e.cfg.Retrieval.NResults, monitor)
}

// Ask turns question into SQL using the most similar training records of
// each kind.
func (e *Engine) Ask(ctx context.Context, question string) (string, error) {
	return e.AskWithMonitor(ctx, question, nil)
}

// AskWithMonitor is Ask with callbacks at each retrieval stage.
func (e *Engine) AskWithMonitor(ctx context.Context, question string, monitor vectorstore.RetrievalMonitor) (string, error) {
	chat := e.ChatBackend()
	if chat == nil {
		return "", ErrChatNotConfigured
	}

	rc, err := e.Retrieve(ctx, question, monitor)
	if err != nil {
		return "", err
	}
	if rc.Empty() {
		e.logger.Warn("no training data related to question", "question", question)
	}

	sql, err := chat.GenerateSQL(ctx, question, rc)
	if err != nil {
		return "", fmt.Errorf("generating SQL: %w", err)
	}
	return sql, nil
}

// Count returns the number of stored records of kind; storage.AllKinds counts all.
func (e *Engine) Count(ctx context.Context, kind core.Kind) (int, error) {
	return e.store.Count(ctx, kind)
}

// Reset deletes stored training data of kinds, or all of it.
func (e *Engine) Reset(ctx context.Context, kinds ...core.Kind) error {
	return e.store.Reset(ctx, kinds...)
}

// ProbeEmbedding checks that the embedding service answers. It bypasses the
// cache and never reports a fallback vector as success.
func (e *Engine) ProbeEmbedding(ctx context.Context) ai.ProbeResult {
	prober, ok := e.embedder.(ai.Prober)
	if !ok {
		return ai.ProbeResult{Message: "embedder does not support connection tests"}
	}
	return prober.TestConnection(ctx, openai.DefaultProbeText)
}

// ProbeChat checks that the chat model answers. Without a chat backend the
// result reports ErrChatNotConfigured.
func (e *Engine) ProbeChat(ctx context.Context) ai.ProbeResult {
	chat := e.provider.ChatBackend()
	if chat == nil {
		return ai.ProbeResult{Message: ErrChatNotConfigured.Error()}
	}
	prober, ok := chat.(ai.ChatProber)
	if !ok {
		return ai.ProbeResult{Success: true, Message: "chat backend does not support connection tests"}
	}
	return prober.TestChat(ctx)
}

// ProbeStorage checks that the repository answers by counting every stored
// record.
func (e *Engine) ProbeStorage(ctx context.Context) (int, error) {
	n, err := e.store.Count(ctx, storage.AllKinds)
	if err != nil {
		return 0, fmt.Errorf("%s storage check failed: %w", e.cfg.Storage.Backend, err)
	}
	return n, nil
}
