package vectorstore

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/sqlrecall/ai"
	"github.com/poiesic/sqlrecall/ai/mock"
	"github.com/poiesic/sqlrecall/core"
	"github.com/poiesic/sqlrecall/storage"
	"github.com/poiesic/sqlrecall/storage/badger"
)

func newTestStore(t *testing.T, opts ...Option) (*Store, *mock.MockEmbedder) {
	t.Helper()
	repo, err := badger.NewMemoryRepository()
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	embedder := mock.NewMockEmbedder()
	store, err := NewStore(embedder, repo, opts...)
	require.NoError(t, err)
	return store, embedder
}

func TestNewStore(t *testing.T) {
	repo, err := badger.NewMemoryRepository()
	require.NoError(t, err)
	defer repo.Close()

	embedder := mock.NewMockEmbedder()

	t.Run("valid configuration", func(t *testing.T) {
		store, err := NewStore(embedder, repo)
		require.NoError(t, err)
		assert.NotNil(t, store)
	})

	t.Run("with nil logger falls back to default", func(t *testing.T) {
		store, err := NewStore(embedder, repo, WithLogger(nil))
		require.NoError(t, err)
		assert.NotNil(t, store)
	})

	t.Run("with custom logger", func(t *testing.T) {
		_, err := NewStore(embedder, repo, WithLogger(slog.Default()))
		require.NoError(t, err)
	})

	t.Run("nil embedder", func(t *testing.T) {
		_, err := NewStore(nil, repo)
		assert.Equal(t, ErrEmbedderRequired, err)
	})

	t.Run("nil repository", func(t *testing.T) {
		_, err := NewStore(embedder, nil)
		assert.Equal(t, ErrRepositoryRequired, err)
	})

	t.Run("min score out of range", func(t *testing.T) {
		_, err := NewStore(embedder, repo, WithMinScore(1.5))
		assert.ErrorIs(t, err, storage.ErrInvalidQuery)
	})
}

func TestAddBatch(t *testing.T) {
	store, embedder := newTestStore(t)
	ctx := context.Background()

	items := []core.TrainingItem{
		core.NewDDL("CREATE TABLE orders (id INT, total NUMERIC)"),
		core.NewDDL("CREATE TABLE customers (id INT, name TEXT)"),
		core.NewDDL("CREATE TABLE regions (id INT, name TEXT)"),
	}
	require.NoError(t, store.AddBatch(ctx, items))

	count, err := store.Count(ctx, core.KindDDL)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, []string{items[0].Content(), items[1].Content(), items[2].Content()}, embedder.Texts())

	// Retraining the same items keeps one copy of each.
	require.NoError(t, store.AddBatch(ctx, items))
	count, err = store.Count(ctx, storage.AllKinds)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestAddBatch_InvalidItemFailsBeforeEmbedding(t *testing.T) {
	store, embedder := newTestStore(t)

	err := store.AddBatch(context.Background(), []core.TrainingItem{
		core.NewDocumentation("valid"),
		core.NewDocumentation("   "),
	})
	assert.ErrorIs(t, err, core.ErrInvalidTrainingItem)
	assert.Zero(t, embedder.CallCount())
}

func TestAddBatch_EmbedderFailure(t *testing.T) {
	store, embedder := newTestStore(t)
	boom := errors.New("upstream down")
	embedder.EmbedBatchFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, boom
	}

	err := store.AddBatch(context.Background(), []core.TrainingItem{core.NewDDL("CREATE TABLE t (id INT)")})
	assert.ErrorIs(t, err, boom)

	count, err := store.Count(context.Background(), storage.AllKinds)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestAddBatch_ShortEmbeddingResult(t *testing.T) {
	store, embedder := newTestStore(t)
	embedder.EmbedBatchFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1, 0}}, nil
	}

	err := store.AddBatch(context.Background(), []core.TrainingItem{
		core.NewDDL("a"), core.NewDDL("b"),
	})
	assert.ErrorIs(t, err, ErrEmbeddingCount)
}

func TestAdd(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, core.NewQuestionSQL("How many orders?", "SELECT COUNT(*) FROM orders")))
	assert.ErrorIs(t, store.Add(ctx, core.NewQuestionSQL("", "SELECT 1")), core.ErrEmptyQuestion)

	count, err := store.Count(ctx, core.KindQuestionSQL)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestFindSimilar(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddBatch(ctx, []core.TrainingItem{
		core.NewDocumentation("orders ship within three days"),
		core.NewDocumentation("refunds are processed monthly"),
	}))

	// The mock embedder is deterministic, so the exact text is the best hit.
	results, err := store.FindSimilar(ctx, "refunds are processed monthly", core.KindDocumentation, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "refunds are processed monthly", results[0].Record.Content)
	assert.InDelta(t, 1.0, results[0].Score, 0.0001)
}

type recordingMonitor struct {
	noopMonitor
	question  string
	dimension int
	kinds     []core.Kind
	finished  bool
}

func (m *recordingMonitor) Start(question string)    { m.question = question }
func (m *recordingMonitor) AfterEmbedding(dim int)   { m.dimension = dim }
func (m *recordingMonitor) Finish(_ ai.RetrievalContext) { m.finished = true }
func (m *recordingMonitor) KindResults(kind core.Kind, _ []*core.SearchResult) {
	m.kinds = append(m.kinds, kind)
}

func TestRetrievalContext(t *testing.T) {
	store, embedder := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddBatch(ctx, []core.TrainingItem{
		core.NewDDL("CREATE TABLE sales (region TEXT, amount NUMERIC)"),
		core.NewDDL("CREATE TABLE staff (id INT)"),
	}))
	require.NoError(t, store.Add(ctx, core.NewDocumentation("amount is in euros")))
	require.NoError(t, store.Add(ctx, core.NewQuestionSQL("Total sales?", "SELECT SUM(amount) FROM sales")))
	embedder.Reset()

	monitor := &recordingMonitor{}
	rc, err := store.RetrievalContextWithMonitor(ctx, "Which region sells most?", 1, monitor)
	require.NoError(t, err)

	assert.Len(t, rc.DDL, 1)
	assert.Equal(t, []string{"amount is in euros"}, rc.Documentation)
	assert.Equal(t, []ai.QuestionSQL{{Question: "Total sales?", SQL: "SELECT SUM(amount) FROM sales"}}, rc.Examples)

	// One embedding call for all three kinds.
	assert.Equal(t, 1, embedder.CallCount())

	assert.Equal(t, "Which region sells most?", monitor.question)
	assert.Equal(t, mock.DefaultDimension, monitor.dimension)
	assert.Equal(t, core.Kinds(), monitor.kinds)
	assert.True(t, monitor.finished)
}

func TestRetrievalContext_Empty(t *testing.T) {
	store, _ := newTestStore(t)

	rc, err := store.RetrievalContext(context.Background(), "anything?", 6)
	require.NoError(t, err)
	assert.True(t, rc.Empty())
}

func TestReset(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, core.NewDDL("CREATE TABLE a (id INT)")))
	require.NoError(t, store.Add(ctx, core.NewDocumentation("a holds apples")))

	require.NoError(t, store.Reset(ctx, core.KindDDL))
	count, err := store.Count(ctx, storage.AllKinds)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, store.Reset(ctx))
	count, err = store.Count(ctx, storage.AllKinds)
	require.NoError(t, err)
	assert.Zero(t, count)
}
