package session

import "context"

// Store persists session records with optimistic-update semantics.
// This interface is storage-only; reconciliation logic lives in the
// Sweeper component.
type Store interface {
	// Create stores a new record. Returns ErrAlreadyExists if the id
	// is taken.
	Create(ctx context.Context, record *Record) error

	// Load retrieves a record by id. Returns ErrNotFound if absent.
	Load(ctx context.Context, id string) (*Record, error)

	// Save replaces the record iff the stored version equals
	// expectedVersion, then bumps record.Version. Returns
	// ErrVersionConflict when the check fails.
	Save(ctx context.Context, record *Record, expectedVersion int64) error

	// List returns all records (for reconciliation iteration).
	List(ctx context.Context) ([]*Record, error)
}
