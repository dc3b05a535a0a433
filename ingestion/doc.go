// Package ingestion moves training items into a vector store through bounded concurrency.
//
// The Accumulator type buffers items per kind (DDL, documentation,
// question/SQL pair) and dispatches each full batch to a worker pool:
//   - a batch is one bulk Sink.AddBatch call
//   - if the bulk call fails, every item is retried alone with Sink.Add and
//     failing items are logged and skipped
//   - Flush drains partial batches and waits for in-flight ones
//   - Shutdown flushes, releases the pool and rejects later items
//
// The Trainer type wraps an Accumulator with one method per kind of training
// material. Errors during async dispatch are logged but never returned to Add.
package ingestion
