// Package store provides session.Store implementations: an in-memory
// store for tests and single-node development, and a Redis-backed store
// for durable deployments.
package store

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"rehearsal-api/internal/domain/session"
)

// MemoryStore is a mutex-based in-memory session store.
// Thread-safe via sync.RWMutex. Records are cloned on the way in and
// out so callers can never alias stored state.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*session.Record
	log     zerolog.Logger
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore(log zerolog.Logger) *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*session.Record),
		log:     log.With().Str("component", "session-store").Logger(),
	}
}

// Create stores a new record.
func (s *MemoryStore) Create(ctx context.Context, rec *session.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; exists {
		return session.ErrAlreadyExists
	}
	s.records[rec.ID] = rec.Clone()
	return nil
}

// Load retrieves a record by id.
func (s *MemoryStore) Load(ctx context.Context, id string) (*session.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	return rec.Clone(), nil
}

// Save replaces the record if the stored version matches.
func (s *MemoryStore) Save(ctx context.Context, rec *session.Record, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.records[rec.ID]
	if !ok {
		return session.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return session.ErrVersionConflict
	}

	rec.Version = expectedVersion + 1
	s.records[rec.ID] = rec.Clone()
	return nil
}

// List returns all records.
func (s *MemoryStore) List(ctx context.Context) ([]*session.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*session.Record, 0, len(s.records))
	for _, rec := range s.records {
		result = append(result, rec.Clone())
	}
	return result, nil
}
