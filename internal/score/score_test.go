package score

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOnlyImprovements(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	tracker := NewTracker(store)

	_, ok, err := tracker.Best(ctx, ToolCPS)
	require.NoError(t, err)
	require.False(t, ok)

	best, improved, err := tracker.Record(ctx, ToolCPS, 6.4)
	require.NoError(t, err)
	require.True(t, improved)
	require.Equal(t, 6.4, best)

	best, improved, err = tracker.Record(ctx, ToolCPS, 5.0)
	require.NoError(t, err)
	require.False(t, improved)
	require.Equal(t, 6.4, best)

	best, improved, err = tracker.Record(ctx, ToolCPS, 6.4)
	require.NoError(t, err)
	require.False(t, improved, "ties keep the stored score")
	require.Equal(t, 6.4, best)

	v, ok, err := store.Get(ctx, KeyCPSBest)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 6.4, v)

	_, ok, _ = store.Get(ctx, KeyTypingBestWPM)
	require.False(t, ok)
}

func TestTrackerLoadsStoredBestOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := &countingStore{MemoryStore: NewMemoryStore()}
	require.NoError(t, store.Set(ctx, KeyTypingBestWPM, 72))

	tracker := NewTracker(store)
	best, improved, err := tracker.Record(ctx, ToolTyping, 65)
	require.NoError(t, err)
	require.False(t, improved)
	require.Equal(t, 72.0, best)

	_, _, err = tracker.Best(ctx, ToolTyping)
	require.NoError(t, err)
	require.Equal(t, 1, store.gets)
}

func TestTrackerRejectsBadInput(t *testing.T) {
	t.Parallel()

	tracker := NewTracker(NewMemoryStore())
	_, _, err := tracker.Record(context.Background(), "bmi", 1)
	require.ErrorIs(t, err, ErrUnknownTool)

	for _, v := range []float64{-1, math.NaN(), math.Inf(1)} {
		_, _, err = tracker.Record(context.Background(), ToolCPS, v)
		require.ErrorIs(t, err, ErrInvalidScore)
	}
}

func TestTrackerSurfacesStoreErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk full")
	tracker := NewTracker(failingStore{err: boom})
	_, _, err := tracker.Record(context.Background(), ToolCPS, 3)
	require.ErrorIs(t, err, boom)
}

func TestSQLiteStorePersists(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "scores.db")
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	store, err := OpenSQLite(ctx, path, WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)

	_, ok, err := store.Get(ctx, KeyCPSBest)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Set(ctx, KeyCPSBest, 7.25))
	require.NoError(t, store.Set(ctx, KeyCPSBest, 9.5))

	ts, ok, err := store.UpdatedAt(ctx, KeyCPSBest)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, fixed.Equal(ts), "updated_at = %v", ts)
	require.NoError(t, store.Close())

	reopened, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	v, ok, err := reopened.Get(ctx, KeyCPSBest)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 9.5, v)
}

type countingStore struct {
	*MemoryStore
	gets int
}

func (s *countingStore) Get(ctx context.Context, key string) (float64, bool, error) {
	s.gets++
	return s.MemoryStore.Get(ctx, key)
}

type failingStore struct{ err error }

func (f failingStore) Get(context.Context, string) (float64, bool, error) { return 0, false, nil }
func (f failingStore) Set(context.Context, string, float64) error         { return f.err }
