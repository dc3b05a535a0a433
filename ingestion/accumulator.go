package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/sqlrecall/core"
)

const (
	// DefaultBatchSize is the number of same-kind items dispatched together.
	DefaultBatchSize = 10
	// DefaultPoolSize is the number of concurrent dispatch workers.
	DefaultPoolSize = 4

	// releaseTimeout bounds how long Shutdown waits for idle workers to exit.
	releaseTimeout = 10 * time.Second
)

// Accumulator collects training items by kind and dispatches full batches
// to a worker pool. It is safe for concurrent use.
//
// Each kind has one buffer. When a buffer reaches the batch size it is swapped
// for an empty one under the lock, and the taken batch is submitted to the
// pool after the lock is released. Submission blocks while every worker is
// busy, which pushes back on callers of Add.
type Accumulator struct {
	proc      processor
	pool      *ants.Pool
	batchSize int
	poolSize  int
	batching  bool
	hook      func(DispatchResult)
	logger    *slog.Logger

	mu      sync.Mutex
	buffers map[core.Kind][]core.TrainingItem
	closed  bool

	// pending counts batches taken from a buffer that have not finished
	// dispatching. It is incremented under mu.
	pendingMu   sync.Mutex
	pendingCond *sync.Cond
	pending     int

	shutdownOnce sync.Once
	shutdownErr  error

	batches   atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	fallbacks atomic.Int64
}

// Option configures an Accumulator.
type Option func(*Accumulator) error

// WithBatchSize sets the number of items per dispatched batch.
// Default is DefaultBatchSize.
func WithBatchSize(size int) Option {
	return func(a *Accumulator) error {
		if size < 1 {
			return fmt.Errorf("%w: batch size %d", ErrInvalidOption, size)
		}
		a.batchSize = size
		return nil
	}
}

// WithPoolSize sets the worker pool size for concurrent dispatch.
// Default is DefaultPoolSize, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(a *Accumulator) error {
		if size < 1 {
			size = 1
		}
		a.poolSize = size
		return nil
	}
}

// WithBatching enables or disables batching. When disabled, Add stores each
// item synchronously in the caller. Default is enabled.
func WithBatching(enabled bool) Option {
	return func(a *Accumulator) error {
		a.batching = enabled
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Accumulator) error {
		if logger == nil {
			logger = slog.Default()
		}
		a.logger = logger
		return nil
	}
}

// WithResultHook registers fn to receive every DispatchResult. fn is called
// from worker goroutines and must be safe for concurrent use.
func WithResultHook(fn func(DispatchResult)) Option {
	return func(a *Accumulator) error {
		a.hook = fn
		return nil
	}
}

// NewAccumulator creates an accumulator that dispatches into sink.
func NewAccumulator(sink Sink, opts ...Option) (*Accumulator, error) {
	if sink == nil {
		return nil, ErrSinkRequired
	}

	a := &Accumulator{
		batchSize: DefaultBatchSize,
		poolSize:  DefaultPoolSize,
		batching:  true,
		logger:    slog.Default(),
		buffers:   make(map[core.Kind][]core.TrainingItem),
	}
	a.pendingCond = sync.NewCond(&a.pendingMu)

	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	a.logger = a.logger.With("component", "accumulator")

	// Create processor and pool after options are applied (so they get final config)
	proc, err := newSinkProcessor(sink, a.logger)
	if err != nil {
		return nil, err
	}
	a.proc = proc

	pool, err := newPool(a.poolSize, a.logger)
	if err != nil {
		return nil, err
	}
	a.pool = pool

	return a, nil
}

// Add accepts item for eventual storage. It returns an error only for an
// invalid item or after Shutdown; storage failures are absorbed at dispatch.
func (a *Accumulator) Add(ctx context.Context, item core.TrainingItem) error {
	if err := item.Validate(); err != nil {
		return err
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrAccumulatorClosed
	}

	if !a.batching {
		a.beginJob()
		a.mu.Unlock()
		defer a.endJob()
		a.record(a.proc.processOne(ctx, item))
		return nil
	}

	kind := item.Kind()
	a.buffers[kind] = append(a.buffers[kind], item)
	if len(a.buffers[kind]) < a.batchSize {
		a.mu.Unlock()
		return nil
	}

	batch := a.buffers[kind]
	a.buffers[kind] = make([]core.TrainingItem, 0, a.batchSize)
	a.beginJob()
	a.mu.Unlock()

	a.submit(ctx, kind, batch)
	return nil
}

// submit hands a batch to the pool. If the pool refuses it, the batch is
// dispatched in the caller so nothing is lost.
func (a *Accumulator) submit(ctx context.Context, kind core.Kind, batch []core.TrainingItem) {
	// The batch outlives the caller's request.
	jobCtx := context.WithoutCancel(ctx)

	err := a.pool.Submit(func() {
		defer a.endJob()
		a.dispatch(jobCtx, kind, batch)
	})
	if err != nil {
		a.logger.Warn("worker pool refused batch, dispatching inline",
			"kind", kind, "size", len(batch), "err", err)
		a.dispatch(jobCtx, kind, batch)
		a.endJob()
	}
}

func (a *Accumulator) dispatch(ctx context.Context, kind core.Kind, batch []core.TrainingItem) {
	a.logger.Debug("dispatching batch", "kind", kind, "size", len(batch))
	a.record(a.proc.process(ctx, kind, batch))
}

func (a *Accumulator) record(result DispatchResult) {
	a.batches.Add(1)
	a.succeeded.Add(int64(result.Succeeded))
	a.failed.Add(int64(result.Failed))
	if result.Fallback {
		a.fallbacks.Add(1)
	}

	if result.Status() != DispatchSucceeded {
		a.logger.Warn("batch dispatched with failures", "kind", result.Kind,
			"status", result.Status(), "succeeded", result.Succeeded, "failed", result.Failed)
	}

	if a.hook != nil {
		a.hook(result)
	}
}

// Flush dispatches every buffered item in the caller, regardless of batch
// size, then waits for batches already handed to the pool. Every item added
// before Flush is called has been dispatched when it returns. Cancelling ctx
// does not abort the drain.
func (a *Accumulator) Flush(ctx context.Context) {
	type taken struct {
		kind  core.Kind
		items []core.TrainingItem
	}

	a.mu.Lock()
	var batches []taken
	for _, kind := range core.Kinds() {
		if len(a.buffers[kind]) == 0 {
			continue
		}
		batches = append(batches, taken{kind: kind, items: a.buffers[kind]})
		a.buffers[kind] = make([]core.TrainingItem, 0, a.batchSize)
		a.beginJob()
	}
	a.mu.Unlock()

	// Taken buffers are drained even if the caller gives up.
	jobCtx := context.WithoutCancel(ctx)
	for _, b := range batches {
		a.dispatch(jobCtx, b.kind, b.items)
		a.endJob()
	}

	a.waitIdle()
}

// Shutdown rejects further items, flushes, waits for in-flight batches and
// releases the worker pool. It waits rather than cancels. Calling it more
// than once is a no-op.
func (a *Accumulator) Shutdown(ctx context.Context) error {
	a.shutdownOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		a.mu.Unlock()

		a.Flush(ctx)

		if err := a.pool.ReleaseTimeout(releaseTimeout); err != nil {
			a.shutdownErr = fmt.Errorf("releasing worker pool: %w", err)
		}
		stats := a.Stats()
		a.logger.Info("accumulator shut down", "batches", stats.Batches,
			"succeeded", stats.Succeeded, "failed", stats.Failed, "fallbacks", stats.Fallbacks)
	})
	return a.shutdownErr
}

// Buffered returns the number of items of kind waiting for a full batch.
func (a *Accumulator) Buffered(kind core.Kind) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buffers[kind])
}

// Stats returns cumulative dispatch counters.
func (a *Accumulator) Stats() Stats {
	return Stats{
		Batches:   a.batches.Load(),
		Succeeded: a.succeeded.Load(),
		Failed:    a.failed.Load(),
		Fallbacks: a.fallbacks.Load(),
	}
}

func (a *Accumulator) beginJob() {
	a.pendingMu.Lock()
	a.pending++
	a.pendingMu.Unlock()
}

func (a *Accumulator) endJob() {
	a.pendingMu.Lock()
	a.pending--
	if a.pending == 0 {
		a.pendingCond.Broadcast()
	}
	a.pendingMu.Unlock()
}

func (a *Accumulator) waitIdle() {
	a.pendingMu.Lock()
	for a.pending > 0 {
		a.pendingCond.Wait()
	}
	a.pendingMu.Unlock()
}
