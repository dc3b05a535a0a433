package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/sqlrecall/core"
)

// recordingSink implements Sink for testing
type recordingSink struct {
	mu      sync.Mutex
	batches [][]core.TrainingItem
	singles []core.TrainingItem
	stored  []core.TrainingItem

	batchErr  error
	failItem  func(core.TrainingItem) bool
	onBatch   func([]core.TrainingItem)
	panicBulk bool
}

func (s *recordingSink) AddBatch(ctx context.Context, items []core.TrainingItem) error {
	if s.onBatch != nil {
		s.onBatch(items)
	}
	if s.panicBulk {
		panic("bulk exploded")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]core.TrainingItem(nil), items...))
	if s.batchErr != nil {
		return s.batchErr
	}
	s.stored = append(s.stored, items...)
	return nil
}

func (s *recordingSink) Add(ctx context.Context, item core.TrainingItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.singles = append(s.singles, item)
	if s.failItem != nil && s.failItem(item) {
		return errors.New("item rejected")
	}
	s.stored = append(s.stored, item)
	return nil
}

func (s *recordingSink) snapshot() (batches [][]core.TrainingItem, singles, stored []core.TrainingItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]core.TrainingItem(nil), s.batches...),
		append([]core.TrainingItem(nil), s.singles...),
		append([]core.TrainingItem(nil), s.stored...)
}

func ddlItems(n int) []core.TrainingItem {
	items := make([]core.TrainingItem, n)
	for i := range items {
		items[i] = core.NewDDL(fmt.Sprintf("CREATE TABLE t%d (id INT)", i))
	}
	return items
}

func newTestAccumulator(t *testing.T, sink Sink, opts ...Option) *Accumulator {
	t.Helper()
	acc, err := NewAccumulator(sink, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { acc.Shutdown(context.Background()) })
	return acc
}

func TestNewAccumulator(t *testing.T) {
	t.Run("nil sink", func(t *testing.T) {
		_, err := NewAccumulator(nil)
		assert.Equal(t, ErrSinkRequired, err)
	})

	t.Run("invalid batch size", func(t *testing.T) {
		_, err := NewAccumulator(&recordingSink{}, WithBatchSize(0))
		assert.ErrorIs(t, err, ErrInvalidOption)
	})

	t.Run("defaults", func(t *testing.T) {
		acc := newTestAccumulator(t, &recordingSink{})
		assert.Equal(t, DefaultBatchSize, acc.batchSize)
		assert.Equal(t, DefaultPoolSize, acc.pool.Cap())
		assert.True(t, acc.batching)
	})

	t.Run("pool size floor", func(t *testing.T) {
		acc := newTestAccumulator(t, &recordingSink{}, WithPoolSize(-3), WithLogger(nil))
		assert.Equal(t, 1, acc.pool.Cap())
	})
}

func TestAccumulator_BuffersBelowThreshold(t *testing.T) {
	sink := &recordingSink{}
	acc := newTestAccumulator(t, sink, WithBatchSize(5))
	ctx := context.Background()

	for _, item := range ddlItems(3) {
		require.NoError(t, acc.Add(ctx, item))
	}
	require.NoError(t, acc.Add(ctx, core.NewDocumentation("orders are net of tax")))

	assert.Equal(t, 3, acc.Buffered(core.KindDDL))
	assert.Equal(t, 1, acc.Buffered(core.KindDocumentation))
	assert.Zero(t, acc.Buffered(core.KindQuestionSQL))

	batches, _, _ := sink.snapshot()
	assert.Empty(t, batches)
}

func TestAccumulator_DispatchesAtThreshold(t *testing.T) {
	sink := &recordingSink{}
	acc := newTestAccumulator(t, sink, WithBatchSize(3))
	ctx := context.Background()

	items := ddlItems(4)
	for _, item := range items {
		require.NoError(t, acc.Add(ctx, item))
	}
	assert.Equal(t, 1, acc.Buffered(core.KindDDL))

	// Wait for the pool job without draining the remaining buffer.
	acc.waitIdle()

	batches, _, _ := sink.snapshot()
	require.Len(t, batches, 1)
	assert.Equal(t, items[:3], batches[0])
}

func TestAccumulator_NoItemLossUnderConcurrency(t *testing.T) {
	sink := &recordingSink{}
	acc, err := NewAccumulator(sink, WithBatchSize(10), WithPoolSize(4))
	require.NoError(t, err)
	ctx := context.Background()

	const callers = 25
	const perCaller = 40

	var wg sync.WaitGroup
	for c := 0; c < callers; c++ {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			for i := 0; i < perCaller; i++ {
				var item core.TrainingItem
				switch i % 3 {
				case 0:
					item = core.NewDDL(fmt.Sprintf("CREATE TABLE c%d_t%d (id INT)", c, i))
				case 1:
					item = core.NewDocumentation(fmt.Sprintf("doc %d/%d", c, i))
				default:
					item = core.NewQuestionSQL(fmt.Sprintf("q %d/%d?", c, i), fmt.Sprintf("SELECT %d", i))
				}
				assert.NoError(t, acc.Add(ctx, item))
			}
		}(c)
	}
	wg.Wait()
	require.NoError(t, acc.Shutdown(ctx))

	batches, _, stored := sink.snapshot()
	assert.Len(t, stored, callers*perCaller)

	seen := make(map[core.ID]bool, len(stored))
	for _, item := range stored {
		assert.False(t, seen[item.ID()], "duplicate item %q", item.Content())
		seen[item.ID()] = true
	}

	for _, batch := range batches {
		assert.LessOrEqual(t, len(batch), 10)
		for _, item := range batch {
			assert.Equal(t, batch[0].Kind(), item.Kind(), "batch mixes kinds")
		}
	}

	stats := acc.Stats()
	assert.Equal(t, int64(callers*perCaller), stats.Succeeded)
	assert.Zero(t, stats.Failed)
}

func TestAccumulator_FlushCompleteness(t *testing.T) {
	sink := &recordingSink{}
	acc := newTestAccumulator(t, sink, WithBatchSize(10))
	ctx := context.Background()

	items := ddlItems(7)
	for _, item := range items {
		require.NoError(t, acc.Add(ctx, item))
	}

	acc.Flush(ctx)

	batches, _, stored := sink.snapshot()
	require.Len(t, batches, 1)
	assert.Equal(t, items, batches[0])
	assert.Len(t, stored, 7)
	assert.Zero(t, acc.Buffered(core.KindDDL))

	// Flushing empty buffers is a no-op.
	acc.Flush(ctx)
	batches, _, _ = sink.snapshot()
	assert.Len(t, batches, 1)
}

func TestAccumulator_FallbackOnBulkFailure(t *testing.T) {
	items := ddlItems(5)
	bad := items[2]

	sink := &recordingSink{
		batchErr: errors.New("bulk insert failed"),
		failItem: func(item core.TrainingItem) bool { return item.ID() == bad.ID() },
	}

	var mu sync.Mutex
	var results []DispatchResult
	acc := newTestAccumulator(t, sink, WithBatchSize(5), WithResultHook(func(r DispatchResult) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}))
	ctx := context.Background()

	for _, item := range items {
		require.NoError(t, acc.Add(ctx, item))
	}
	acc.Flush(ctx)

	_, singles, stored := sink.snapshot()
	assert.Equal(t, items, singles, "every item is attempted individually, in order")
	assert.Len(t, stored, 4)
	assert.NotContains(t, stored, bad)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, results, 1)
	assert.True(t, results[0].Fallback)
	assert.Equal(t, DispatchPartial, results[0].Status())
	assert.Equal(t, 4, results[0].Succeeded)
	assert.Equal(t, 1, results[0].Failed)
	assert.EqualError(t, results[0].Err, "bulk insert failed")

	stats := acc.Stats()
	assert.Equal(t, int64(1), stats.Fallbacks)
	assert.Equal(t, int64(1), stats.Failed)
}

func TestAccumulator_SinkPanicIsRecovered(t *testing.T) {
	sink := &recordingSink{panicBulk: true}

	var got DispatchResult
	acc := newTestAccumulator(t, sink, WithBatchSize(2), WithResultHook(func(r DispatchResult) { got = r }))
	ctx := context.Background()

	for _, item := range ddlItems(2) {
		require.NoError(t, acc.Add(ctx, item))
	}
	acc.Flush(ctx)

	assert.ErrorIs(t, got.Err, ErrSinkPanic)
	assert.True(t, got.Fallback)
	assert.Equal(t, 2, got.Succeeded)
}

func TestAccumulator_PostShutdownRejection(t *testing.T) {
	sink := &recordingSink{}
	acc, err := NewAccumulator(sink)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, acc.Add(ctx, core.NewDDL("CREATE TABLE a (id INT)")))
	require.NoError(t, acc.Shutdown(ctx))

	// Shutdown flushed the partial batch.
	_, _, stored := sink.snapshot()
	assert.Len(t, stored, 1)

	err = acc.Add(ctx, core.NewDDL("CREATE TABLE b (id INT)"))
	assert.ErrorIs(t, err, ErrAccumulatorClosed)

	// A second shutdown is a no-op.
	assert.NoError(t, acc.Shutdown(ctx))
	assert.True(t, acc.pool.IsClosed())
}

func TestAccumulator_InvalidItemRejected(t *testing.T) {
	acc := newTestAccumulator(t, &recordingSink{})

	err := acc.Add(context.Background(), core.NewQuestionSQL("What?", " "))
	assert.ErrorIs(t, err, core.ErrEmptySQL)
	assert.Zero(t, acc.Buffered(core.KindQuestionSQL))
}

func TestAccumulator_BatchingDisabled(t *testing.T) {
	sink := &recordingSink{
		failItem: func(item core.TrainingItem) bool { return item.Text() == "bad" },
	}
	acc := newTestAccumulator(t, sink, WithBatching(false))
	ctx := context.Background()

	require.NoError(t, acc.Add(ctx, core.NewDocumentation("good")))
	// Storage failures are absorbed.
	require.NoError(t, acc.Add(ctx, core.NewDocumentation("bad")))

	batches, singles, stored := sink.snapshot()
	assert.Empty(t, batches)
	assert.Len(t, singles, 2)
	assert.Len(t, stored, 1)
	assert.Zero(t, acc.Buffered(core.KindDocumentation))

	stats := acc.Stats()
	assert.Equal(t, int64(2), stats.Batches)
	assert.Equal(t, int64(1), stats.Failed)
}

func TestAccumulator_AddDoesNotWaitForDispatch(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	sink := &recordingSink{
		onBatch: func([]core.TrainingItem) {
			select {
			case started <- struct{}{}:
			default:
			}
			<-release
		},
	}
	acc := newTestAccumulator(t, sink, WithBatchSize(2), WithPoolSize(2))
	ctx := context.Background()

	items := ddlItems(3)
	require.NoError(t, acc.Add(ctx, items[0]))
	require.NoError(t, acc.Add(ctx, items[1]))

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("batch was not dispatched")
	}

	// The first batch is blocked in the sink; adding more must not wait on it.
	done := make(chan struct{})
	go func() {
		assert.NoError(t, acc.Add(ctx, items[2]))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Add blocked behind an in-flight dispatch")
	}
	assert.Equal(t, 1, acc.Buffered(core.KindDDL))

	close(release)
	require.NoError(t, acc.Shutdown(ctx))

	_, _, stored := sink.snapshot()
	assert.Len(t, stored, 3)
}

func TestAccumulator_CancelledCallerContext(t *testing.T) {
	var seen []error
	var mu sync.Mutex
	sink := &recordingSink{
		onBatch: func([]core.TrainingItem) {},
	}
	acc := newTestAccumulator(t, &ctxCheckingSink{inner: sink, errs: &seen, mu: &mu}, WithBatchSize(2))

	ctx, cancel := context.WithCancel(context.Background())
	for _, item := range ddlItems(2) {
		require.NoError(t, acc.Add(ctx, item))
	}
	cancel()
	acc.Flush(context.Background())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 1)
	assert.NoError(t, seen[0], "queued batches outlive the caller's context")
}

func TestAccumulator_FlushWithCancelledContext(t *testing.T) {
	sink := &recordingSink{}
	acc := newTestAccumulator(t, contextAwareSink{inner: sink}, WithBatchSize(10))

	items := ddlItems(7)
	for _, item := range items {
		require.NoError(t, acc.Add(context.Background(), item))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	acc.Flush(ctx)

	_, singles, stored := sink.snapshot()
	assert.Len(t, stored, 7, "buffered items are stored even when the flush context is cancelled")
	assert.Empty(t, singles, "no fallback to single items")
	assert.Equal(t, Stats{Batches: 1, Succeeded: 7}, acc.Stats())
	assert.Zero(t, acc.Buffered(core.KindDDL))
}

// contextAwareSink fails like a network-backed sink once ctx is done.
type contextAwareSink struct {
	inner Sink
}

func (s contextAwareSink) AddBatch(ctx context.Context, items []core.TrainingItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.inner.AddBatch(ctx, items)
}

func (s contextAwareSink) Add(ctx context.Context, item core.TrainingItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.inner.Add(ctx, item)
}

// ctxCheckingSink records the context error seen by AddBatch.
type ctxCheckingSink struct {
	inner Sink
	errs  *[]error
	mu    *sync.Mutex
}

func (s *ctxCheckingSink) AddBatch(ctx context.Context, items []core.TrainingItem) error {
	s.mu.Lock()
	*s.errs = append(*s.errs, ctx.Err())
	s.mu.Unlock()
	return s.inner.AddBatch(ctx, items)
}

func (s *ctxCheckingSink) Add(ctx context.Context, item core.TrainingItem) error {
	return s.inner.Add(ctx, item)
}

func TestDispatchResult_Status(t *testing.T) {
	assert.Equal(t, DispatchSucceeded, DispatchResult{Total: 3, Succeeded: 3}.Status())
	assert.Equal(t, DispatchPartial, DispatchResult{Total: 3, Succeeded: 2, Failed: 1}.Status())
	assert.Equal(t, DispatchFailed, DispatchResult{Total: 3, Failed: 3}.Status())
	assert.Equal(t, "partial", DispatchPartial.String())
}
