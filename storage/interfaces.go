package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/poiesic/sqlrecall/core"
)

// AllKinds selects records of every kind in FindSimilar, Count and DeleteKind.
const AllKinds core.Kind = 0

// Repository stores training records and answers vector similarity queries.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// AddRecords upserts one or more training records. Records are keyed by
	// their content-derived ID, so adding identical content twice keeps one copy.
	// Sets InsertedAt if not already set. All records are written atomically.
	AddRecords(ctx context.Context, records ...*core.TrainingRecord) error

	// FindSimilar finds records of the given kind (AllKinds for any) whose
	// cosine similarity to vector is >= minScore, up to limit results.
	// Results are ordered by score (highest first).
	FindSimilar(ctx context.Context, vector []float32, kind core.Kind, minScore float32, limit int) ([]*core.SearchResult, error)

	// Count returns the number of stored records of the given kind (AllKinds for all).
	Count(ctx context.Context, kind core.Kind) (int, error)

	// DeleteKind removes every record of the given kind (AllKinds for all).
	DeleteKind(ctx context.Context, kind core.Kind) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// Backend names a Repository implementation.
type Backend string

const (
	// BackendBadger is the embedded BadgerDB store. It is the default.
	BackendBadger Backend = "badger"
	// BackendQdrant is a remote Qdrant server reached over gRPC.
	BackendQdrant Backend = "qdrant"
)

// ParseBackend converts a backend name to a Backend. The empty string
// selects BackendBadger.
func ParseBackend(s string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(s))) {
	case "", BackendBadger:
		return BackendBadger, nil
	case BackendQdrant:
		return BackendQdrant, nil
	}
	return "", fmt.Errorf("%w: unknown storage backend %q", ErrInvalidQuery, s)
}
