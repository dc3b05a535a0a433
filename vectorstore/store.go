package vectorstore

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/poiesic/sqlrecall/ai"
	"github.com/poiesic/sqlrecall/core"
	"github.com/poiesic/sqlrecall/storage"
)

// DefaultMinScore admits every stored record; retrieval is ranked, not thresholded.
const DefaultMinScore float32 = -1

// Store embeds training items and persists them in a repository.
// It is safe for concurrent use by multiple dispatch workers.
type Store struct {
	embedder ai.Embedder
	repo     storage.Repository
	minScore float32
	logger   *slog.Logger
}

// Option configures a Store.
type Option func(*Store) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithMinScore drops search hits scoring below minScore.
func WithMinScore(minScore float32) Option {
	return func(s *Store) error {
		if minScore < -1 || minScore > 1 {
			return fmt.Errorf("%w: min score %v outside [-1, 1]", storage.ErrInvalidQuery, minScore)
		}
		s.minScore = minScore
		return nil
	}
}

// NewStore creates a new store. The store does not own repo; the caller closes it.
func NewStore(embedder ai.Embedder, repo storage.Repository, opts ...Option) (*Store, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if repo == nil {
		return nil, ErrRepositoryRequired
	}

	s := &Store{
		embedder: embedder,
		repo:     repo,
		minScore: DefaultMinScore,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "vectorstore")

	return s, nil
}

// AddBatch embeds and stores items in bulk. Any invalid item fails the whole
// batch before anything is embedded.
func (s *Store) AddBatch(ctx context.Context, items []core.TrainingItem) error {
	if len(items) == 0 {
		return nil
	}

	texts := make([]string, len(items))
	for i, item := range items {
		if err := item.Validate(); err != nil {
			return err
		}
		texts[i] = item.Content()
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding batch of %d: %w", len(items), err)
	}
	if len(vectors) != len(items) {
		return fmt.Errorf("%w: %d texts, %d vectors", ErrEmbeddingCount, len(items), len(vectors))
	}

	records := make([]*core.TrainingRecord, len(items))
	for i, item := range items {
		records[i] = core.NewTrainingRecord(item, vectors[i])
	}

	if err := s.repo.AddRecords(ctx, records...); err != nil {
		return fmt.Errorf("storing batch of %d: %w", len(items), err)
	}
	s.logger.Debug("stored batch", "kind", items[0].Kind(), "count", len(items))
	return nil
}

// Add embeds and stores a single item.
func (s *Store) Add(ctx context.Context, item core.TrainingItem) error {
	if err := item.Validate(); err != nil {
		return err
	}

	vector, err := s.embedder.Embed(ctx, item.Content())
	if err != nil {
		return fmt.Errorf("embedding %s item: %w", item.Kind(), err)
	}

	if err := s.repo.AddRecords(ctx, core.NewTrainingRecord(item, vector)); err != nil {
		return fmt.Errorf("storing %s item: %w", item.Kind(), err)
	}
	return nil
}

// FindSimilar returns up to limit records of kind nearest to query,
// ranked by score. storage.AllKinds searches every kind.
func (s *Store) FindSimilar(ctx context.Context, query string, kind core.Kind, limit int) ([]*core.SearchResult, error) {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}
	return s.repo.FindSimilar(ctx, vector, kind, s.minScore, limit)
}

// RetrievalContext collects up to n records of each kind related to question.
func (s *Store) RetrievalContext(ctx context.Context, question string, n int) (ai.RetrievalContext, error) {
	return s.RetrievalContextWithMonitor(ctx, question, n, nil)
}

// RetrievalContextWithMonitor is RetrievalContext with callbacks at each stage.
func (s *Store) RetrievalContextWithMonitor(ctx context.Context, question string, n int, monitor RetrievalMonitor) (ai.RetrievalContext, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	monitor.Start(question)

	var rc ai.RetrievalContext

	// The question is embedded once and reused for every kind.
	vector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		s.logger.Error("error generating embedding for question", "err", err)
		return rc, err
	}
	monitor.AfterEmbedding(len(vector))

	kinds := core.Kinds()
	perKind := make([][]*core.SearchResult, len(kinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range kinds {
		g.Go(func() error {
			results, err := s.repo.FindSimilar(gctx, vector, kind, s.minScore, n)
			if err != nil {
				s.logger.Error("error querying for similar records", "kind", kind, "err", err)
				return fmt.Errorf("querying %s: %w", kind, err)
			}
			perKind[i] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return rc, err
	}

	for i, kind := range kinds {
		monitor.KindResults(kind, perKind[i])
		for _, result := range perKind[i] {
			record := result.Record
			switch kind {
			case core.KindDDL:
				rc.DDL = append(rc.DDL, record.Content)
			case core.KindDocumentation:
				rc.Documentation = append(rc.Documentation, record.Content)
			case core.KindQuestionSQL:
				rc.Examples = append(rc.Examples, ai.QuestionSQL{Question: record.Question, SQL: record.SQL})
			}
		}
	}

	monitor.Finish(rc)
	return rc, nil
}

// Count returns the number of stored records of kind.
func (s *Store) Count(ctx context.Context, kind core.Kind) (int, error) {
	return s.repo.Count(ctx, kind)
}

// Reset deletes the stored records of the given kinds, or of every kind if none are given.
func (s *Store) Reset(ctx context.Context, kinds ...core.Kind) error {
	if len(kinds) == 0 {
		kinds = []core.Kind{storage.AllKinds}
	}
	for _, kind := range kinds {
		if err := s.repo.DeleteKind(ctx, kind); err != nil {
			return fmt.Errorf("resetting %s: %w", kind, err)
		}
		s.logger.Info("reset training data", "kind", kind)
	}
	return nil
}
