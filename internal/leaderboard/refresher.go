package leaderboard

import (
	"context"
	"log/slog"
	"time"
)

// Refresher rebuilds the Redis snapshot on a fixed interval so participant
// polls read a bounded-staleness view without touching Postgres.
type Refresher struct {
	cache    *Cache
	interval time.Duration
}

// NewRefresher creates a snapshot refresh worker.
func NewRefresher(cache *Cache, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Refresher{cache: cache, interval: interval}
}

// Start begins the refresh loop in a goroutine.
func (r *Refresher) Start(ctx context.Context) {
	go r.run(ctx)
}

func (r *Refresher) run(ctx context.Context) {
	slog.Info("leaderboard snapshot refresher started", "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("leaderboard snapshot refresher stopped")
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	if err := r.cache.Refresh(ctx); err != nil {
		slog.Warn("leaderboard snapshot refresh failed", "error", err)
	}
}
