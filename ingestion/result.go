package ingestion

import (
	"time"

	"github.com/poiesic/sqlrecall/core"
)

// DispatchStatus classifies a DispatchResult.
type DispatchStatus int

const (
	// DispatchSucceeded means every item was stored.
	DispatchSucceeded DispatchStatus = iota
	// DispatchPartial means some items were stored and some were skipped.
	DispatchPartial
	// DispatchFailed means no item was stored.
	DispatchFailed
)

func (s DispatchStatus) String() string {
	switch s {
	case DispatchSucceeded:
		return "succeeded"
	case DispatchPartial:
		return "partial"
	case DispatchFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// DispatchResult is the outcome of dispatching one batch to the sink.
type DispatchResult struct {
	Kind      core.Kind
	Total     int
	Succeeded int
	Failed    int
	// Fallback is set when the bulk call failed and items were retried one by one.
	Fallback bool
	// Err is the bulk failure that triggered the fallback, or the single-item
	// failure when batching is disabled.
	Err     error
	Elapsed time.Duration
}

// Status reports whether the batch was fully, partially or not at all stored.
func (r DispatchResult) Status() DispatchStatus {
	switch {
	case r.Failed == 0:
		return DispatchSucceeded
	case r.Succeeded == 0:
		return DispatchFailed
	default:
		return DispatchPartial
	}
}

// Stats are cumulative dispatch counters for an Accumulator.
type Stats struct {
	Batches   int64
	Succeeded int64
	Failed    int64
	Fallbacks int64
}
