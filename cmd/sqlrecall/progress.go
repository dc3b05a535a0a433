package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/poiesic/sqlrecall/ingestion"
)

// progressTracker reports training progress as batches are dispatched.
type progressTracker struct {
	writer         io.Writer
	total          int
	current        int
	failed         int
	reportInterval int
	lastReported   int
	startTime      time.Time
	started        bool
	mu             sync.Mutex
}

// newProgressTracker creates a new progress tracker.
// writer: where to write progress output (typically os.Stderr)
// total: total number of items to train
// reportInterval: report progress every N items
func newProgressTracker(writer io.Writer, total, reportInterval int) *progressTracker {
	if reportInterval < 1 {
		reportInterval = 1
	}
	return &progressTracker{
		writer:         writer,
		total:          total,
		reportInterval: reportInterval,
	}
}

// Start begins tracking progress.
func (p *progressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.started = true
	p.current = 0
	p.failed = 0
	p.lastReported = 0
}

// Observe records a dispatch outcome. It is used as the accumulator's result
// hook and may be called from several workers at once.
func (p *progressTracker) Observe(result ingestion.DispatchResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failed += result.Failed
	p.advance(result.Total)
}

// Increment counts delta items that never reached the accumulator.
func (p *progressTracker) Increment(delta int, failed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if failed {
		p.failed += delta
	}
	p.advance(delta)
}

// advance must be called with lock held.
func (p *progressTracker) advance(delta int) {
	if !p.started {
		return
	}

	p.current += delta
	if p.current > p.total {
		p.current = p.total
	}

	// Report if we've crossed a report interval
	if p.current-p.lastReported >= p.reportInterval {
		p.report()
		p.lastReported = p.current
	}
}

// Finish prints final progress.
func (p *progressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	p.report()
	fmt.Fprintln(p.writer) // Print newline after final progress
}

// Failed returns the number of items that could not be stored.
func (p *progressTracker) Failed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failed
}

// Elapsed returns the time elapsed since Start was called.
func (p *progressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return 0
	}

	return time.Since(p.startTime)
}

// report prints the current progress. Must be called with lock held.
func (p *progressTracker) report() {
	elapsed := time.Since(p.startTime)
	rate := float64(p.current) / elapsed.Seconds()

	percentage := 0.0
	if p.total > 0 {
		percentage = float64(p.current) / float64(p.total) * 100.0
	}

	fmt.Fprintf(p.writer, "\rTrained: %d/%d (%.1f%%) - %.1f items/s - %d failed",
		p.current, p.total, percentage, rate, p.failed)
}
