package sessions

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper is the part of a store the janitor drives.
type Sweeper interface {
	CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error)
	Len() int
}

// RunCleanup sweeps expired sessions every interval until ctx is done.
func RunCleanup(ctx context.Context, store Sweeper, interval time.Duration, batch int, now func() time.Time, logger *zap.Logger) {
	if store == nil || interval <= 0 {
		return
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.CleanupExpired(ctx, now(), batch)
			if err != nil {
				logger.Warn("session cleanup failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				logger.Debug("expired sessions removed", zap.Int("removed", removed), zap.Int("remaining", store.Len()))
			}
		}
	}
}
