package score

import (
	"context"
	"fmt"
	"math"
	"sync"
)

// Tracker caches the best score per tool and writes through on improvement.
type Tracker struct {
	store Store

	mu     sync.Mutex
	loaded map[string]bool
	best   map[string]float64
}

// NewTracker wraps store.
func NewTracker(store Store) *Tracker {
	return &Tracker{
		store:  store,
		loaded: make(map[string]bool),
		best:   make(map[string]float64),
	}
}

// Best returns the best score for tool, loading it from the store the first time.
func (t *Tracker) Best(ctx context.Context, tool string) (float64, bool, error) {
	key, err := KeyFor(tool)
	if err != nil {
		return 0, false, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.loadLocked(ctx, key); err != nil {
		return 0, false, err
	}
	v, ok := t.best[key]
	return v, ok, nil
}

// Record offers value as a new score. The store is written only when value beats the
// previous best; the returned best is the value in effect afterwards.
func (t *Tracker) Record(ctx context.Context, tool string, value float64) (float64, bool, error) {
	key, err := KeyFor(tool)
	if err != nil {
		return 0, false, err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return 0, false, fmt.Errorf("%w: %v", ErrInvalidScore, value)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.loadLocked(ctx, key); err != nil {
		return 0, false, err
	}
	if prev, ok := t.best[key]; ok && value <= prev {
		return prev, false, nil
	}
	if err := t.store.Set(ctx, key, value); err != nil {
		return 0, false, err
	}
	t.best[key] = value
	return value, true, nil
}

func (t *Tracker) loadLocked(ctx context.Context, key string) error {
	if t.loaded[key] {
		return nil
	}
	v, ok, err := t.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("loading best score: %w", err)
	}
	if ok {
		t.best[key] = v
	}
	t.loaded[key] = true
	return nil
}
