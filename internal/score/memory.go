package score

import (
	"context"
	"sync"
)

// MemoryStore keeps scores in process memory, for tests and local development.
type MemoryStore struct {
	mu     sync.Mutex
	scores map[string]float64
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{scores: make(map[string]float64)}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.scores[key]
	return v, ok, nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, key string, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scores[key] = value
	return nil
}
