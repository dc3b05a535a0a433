package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// Embed generates a vector embedding for a single text string.
	// Empty text yields a zero vector without contacting the service.
	// When the service cannot be reached and a dimension is known, a zero
	// vector is returned instead of an error.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds each text independently. One failure never aborts
	// the rest; the result has the same length and order as texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the currently known vector length, or 0 if none
	// has been configured or learned yet.
	Dimension() int
}

// Prober checks connectivity to an embedding service.
type Prober interface {
	// TestConnection embeds probeText once and reports the outcome. It never
	// panics and never returns a fallback vector as success.
	TestConnection(ctx context.Context, probeText string) ProbeResult
}

// ChatBackend turns questions into SQL and SQL into questions.
// Implementations must be thread-safe for concurrent use.
type ChatBackend interface {
	// GenerateSQL answers a natural-language question with a SQL statement,
	// grounded on the retrieved training context.
	GenerateSQL(ctx context.Context, question string, rc RetrievalContext) (string, error)

	// GenerateQuestion produces the single question a SQL statement answers.
	// The result always ends with a question mark.
	GenerateQuestion(ctx context.Context, sql string) (string, error)
}

// Provider aggregates AI services for convenient initialization and lifecycle management.
// ChatProber is implemented by chat backends that can check the model is
// reachable without generating SQL.
type ChatProber interface {
	// TestChat sends a short message and reports whether the model replied.
	TestChat(ctx context.Context) ProbeResult
}

type Provider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// ChatBackend returns the chat service.
	ChatBackend() ChatBackend

	// Close releases resources held by the provider and its services.
	Close() error
}
