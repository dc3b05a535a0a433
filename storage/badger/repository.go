package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/poiesic/sqlrecall/core"
	"github.com/poiesic/sqlrecall/storage"
)

// Repository implements storage.Repository for BadgerDB.
type Repository struct {
	backend *Backend
	owned   bool
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository opens a BadgerDB database at path and returns a repository
// that owns it. Closing the repository closes the database.
func NewRepository(path string) (storage.Repository, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, err
	}
	repo := newRepository(backend)
	repo.owned = true
	return repo, nil
}

// newRepository wraps an already open backend. The caller keeps ownership of it.
func newRepository(backend *Backend) *Repository {
	return &Repository{backend: backend}
}

// Close closes the underlying database if this repository opened it.
func (r *Repository) Close() error {
	if !r.owned || r.backend.IsClosed() {
		return nil
	}
	return r.backend.Close()
}

// AddRecords upserts one or more training records in a single transaction.
func (r *Repository) AddRecords(ctx context.Context, records ...*core.TrainingRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dimension := 0
	for _, record := range records {
		if err := core.ValidateTrainingRecord(record); err != nil {
			return err
		}
		if len(record.Vector) == 0 {
			continue
		}
		if dimension == 0 {
			dimension = len(record.Vector)
		} else if len(record.Vector) != dimension {
			return fmt.Errorf("%w: batch mixes %d and %d", storage.ErrDimensionMismatch, dimension, len(record.Vector))
		}
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, record := range records {
			if record.InsertedAt.IsZero() {
				record.InsertedAt = time.Now().UTC()
			}

			value, err := storage.MarshalRecord(record)
			if err != nil {
				return err
			}
			if err := tx.Set(makeRecordKey(record.Kind, record.Id), value); err != nil {
				return fmt.Errorf("%w: %w", storage.ErrTransactionFailed, err)
			}
		}
		return tx.Commit()
	}, true)
}

// FindSimilar delegates to the backend.
func (r *Repository) FindSimilar(ctx context.Context, vector []float32, kind core.Kind, minScore float32, limit int) ([]*core.SearchResult, error) {
	if err := validateKindFilter(kind); err != nil {
		return nil, err
	}
	return r.backend.FindSimilar(ctx, vector, kind, minScore, limit)
}

// Count delegates to the backend.
func (r *Repository) Count(ctx context.Context, kind core.Kind) (int, error) {
	if err := validateKindFilter(kind); err != nil {
		return 0, err
	}
	return r.backend.Count(ctx, kind)
}

// DeleteKind removes every record of kind.
func (r *Repository) DeleteKind(ctx context.Context, kind core.Kind) error {
	if err := validateKindFilter(kind); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.backend.DropKind(kind)
}

func validateKindFilter(kind core.Kind) error {
	if kind == storage.AllKinds || kind.Valid() {
		return nil
	}
	return fmt.Errorf("%w: %w", storage.ErrInvalidQuery, core.ValidateKind(kind))
}
