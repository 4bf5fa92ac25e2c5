package progress

import (
	"context"
	"sort"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory [Store] for tests and single-process
// deployments without a database.
//
// All methods are safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[[2]string]Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[[2]string]Record)}
}

// Save implements [Store].
func (s *MemoryStore) Save(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.UpdatedAt = time.Now()
	s.records[[2]string{rec.UserID, rec.ExerciseSlug}] = rec
	return nil
}

// Get implements [Store].
func (s *MemoryStore) Get(_ context.Context, userID, exerciseSlug string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[[2]string{userID, exerciseSlug}]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// ListByUser implements [Store].
func (s *MemoryStore) ListByUser(_ context.Context, userID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Record{}
	for key, rec := range s.records {
		if key[0] == userID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}
