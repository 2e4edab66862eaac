// Package sessions keeps live per-visitor sessions (calculator forms, running
// timers) in memory with sliding expiry.
package sessions

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// DefaultTTL applies when a non-positive TTL is configured.
const DefaultTTL = 30 * time.Minute

var (
	// ErrNotFound is returned for unknown or expired session ids.
	ErrNotFound = errors.New("sessions: not found")
	// ErrNoBuilder is returned when Create is called without a builder.
	ErrNoBuilder = errors.New("sessions: nil builder")
)

// Record is a stored session value with its bookkeeping timestamps.
type Record[T any] struct {
	ID        string
	Value     T
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time
}

// MemoryStore holds sessions in a map guarded by a mutex.
type MemoryStore[T any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	idGen   func() string
	onEvict func(T)
	records map[string]Record[T]
}

// Option customises a MemoryStore.
type Option[T any] func(*MemoryStore[T])

// WithIDGenerator overrides the ULID generator.
func WithIDGenerator[T any](fn func() string) Option[T] {
	return func(s *MemoryStore[T]) {
		if fn != nil {
			s.idGen = fn
		}
	}
}

// WithEvictHook registers fn to run, outside the store lock, for every value
// removed by Delete, expiry on Get, or CleanupExpired.
func WithEvictHook[T any](fn func(T)) Option[T] {
	return func(s *MemoryStore[T]) { s.onEvict = fn }
}

// NewMemoryStore constructs an empty store whose entries live ttl past their last use.
func NewMemoryStore[T any](ttl time.Duration, opts ...Option[T]) *MemoryStore[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &MemoryStore[T]{
		ttl:     ttl,
		idGen:   func() string { return ulid.Make().String() },
		records: make(map[string]Record[T]),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Create allocates an id, builds the value for it and stores the result.
func (s *MemoryStore[T]) Create(_ context.Context, now time.Time, build func(id string) (T, error)) (Record[T], error) {
	if build == nil {
		return Record[T]{}, ErrNoBuilder
	}
	id := s.idGen()
	value, err := build(id)
	if err != nil {
		return Record[T]{}, err
	}
	now = now.UTC()
	record := Record[T]{
		ID:        id,
		Value:     value,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[id] = record
	return record, nil
}

// Get returns the live session for id and extends its expiry.
func (s *MemoryStore[T]) Get(_ context.Context, id string, now time.Time) (Record[T], error) {
	now = now.UTC()
	id = strings.TrimSpace(id)

	s.mu.Lock()
	record, ok := s.records[id]
	if !ok {
		s.mu.Unlock()
		return Record[T]{}, ErrNotFound
	}
	if !now.Before(record.ExpiresAt) {
		delete(s.records, id)
		s.mu.Unlock()
		s.evict(record.Value)
		return Record[T]{}, ErrNotFound
	}
	record.UpdatedAt = now
	record.ExpiresAt = now.Add(s.ttl)
	s.records[id] = record
	s.mu.Unlock()
	return record, nil
}

// Delete removes the session, if present.
func (s *MemoryStore[T]) Delete(_ context.Context, id string) error {
	id = strings.TrimSpace(id)
	s.mu.Lock()
	record, ok := s.records[id]
	delete(s.records, id)
	s.mu.Unlock()
	if ok {
		s.evict(record.Value)
	}
	return nil
}

// CleanupExpired removes at most limit expired sessions; limit <= 0 means all.
func (s *MemoryStore[T]) CleanupExpired(_ context.Context, now time.Time, limit int) (int, error) {
	now = now.UTC()
	s.mu.Lock()
	if limit <= 0 || limit > len(s.records) {
		limit = len(s.records)
	}
	var evicted []T
	for id, record := range s.records {
		if len(evicted) >= limit {
			break
		}
		if now.Before(record.ExpiresAt) {
			continue
		}
		delete(s.records, id)
		evicted = append(evicted, record.Value)
	}
	s.mu.Unlock()

	for _, v := range evicted {
		s.evict(v)
	}
	return len(evicted), nil
}

// Len reports the number of stored sessions, expired ones included.
func (s *MemoryStore[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *MemoryStore[T]) evict(v T) {
	if s.onEvict != nil {
		s.onEvict(v)
	}
}
