package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/sqlrecall/core"
)

// sinkProcessor dispatches items to a Sink.
type sinkProcessor struct {
	sink   Sink
	logger *slog.Logger
}

var _ processor = (*sinkProcessor)(nil)

// newSinkProcessor creates a new sink processor.
func newSinkProcessor(sink Sink, logger *slog.Logger) (processor, error) {
	if sink == nil {
		return nil, ErrSinkRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &sinkProcessor{
		sink:   sink,
		logger: logger.With("processor", "dispatch"),
	}, nil
}

// process makes one bulk call and, if it fails, attempts every item on its
// own. Individual failures are logged and skipped.
func (sp *sinkProcessor) process(ctx context.Context, kind core.Kind, items []core.TrainingItem) (result DispatchResult) {
	start := time.Now()
	result = DispatchResult{Kind: kind, Total: len(items)}
	defer func() { result.Elapsed = time.Since(start) }()

	err := sp.addBatch(ctx, items)
	if err == nil {
		result.Succeeded = len(items)
		return result
	}

	result.Fallback = true
	result.Err = err
	sp.logger.Warn("bulk insert failed, storing items individually",
		"kind", kind, "size", len(items), "err", err)

	for i, item := range items {
		if err := sp.add(ctx, item); err != nil {
			result.Failed++
			sp.logger.Error("skipping item", "kind", kind, "index", i, "err", err)
			continue
		}
		result.Succeeded++
	}
	return result
}

func (sp *sinkProcessor) processOne(ctx context.Context, item core.TrainingItem) (result DispatchResult) {
	start := time.Now()
	result = DispatchResult{Kind: item.Kind(), Total: 1}
	defer func() { result.Elapsed = time.Since(start) }()

	if err := sp.add(ctx, item); err != nil {
		result.Failed = 1
		result.Err = err
		sp.logger.Error("skipping item", "kind", item.Kind(), "err", err)
		return result
	}
	result.Succeeded = 1
	return result
}

// addBatch calls the sink, converting a panic into an error.
func (sp *sinkProcessor) addBatch(ctx context.Context, items []core.TrainingItem) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrSinkPanic, r)
		}
	}()
	return sp.sink.AddBatch(ctx, items)
}

func (sp *sinkProcessor) add(ctx context.Context, item core.TrainingItem) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrSinkPanic, r)
		}
	}()
	return sp.sink.Add(ctx, item)
}
