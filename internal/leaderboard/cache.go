package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quest-forge/quest-engine/internal/models"
	"github.com/quest-forge/quest-engine/internal/storage"
)

const snapshotKey = "workshop:leaderboard:snapshot"

// Cache serves the bulk leaderboard read from a Redis-held snapshot of the
// full entry set, refreshed periodically. With tens of participants polling
// every few seconds this keeps the read path off Postgres. The snapshot is
// replaced wholesale, never merged; a read may lag writes by up to one
// refresh interval.
type Cache struct {
	rdb  *redis.Client
	repo storage.Repository
	ttl  time.Duration
}

// NewCache creates a snapshot cache. The TTL bounds staleness if the
// refresher stalls: an expired snapshot falls back to the repository.
func NewCache(rdb *redis.Client, repo storage.Repository, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{rdb: rdb, repo: repo, ttl: ttl}
}

// Refresh reads the canonical entry set from the repository and replaces
// the Redis snapshot.
func (c *Cache) Refresh(ctx context.Context) error {
	entries, err := c.repo.ListEntries(ctx)
	if err != nil {
		return fmt.Errorf("failed to load entries for snapshot: %w", err)
	}
	if entries == nil {
		entries = []models.LeaderboardEntry{}
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := c.rdb.Set(ctx, snapshotKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}
	return nil
}

// Entries returns the cached snapshot, falling back to the repository on a
// cache miss or Redis failure. Degraded reads are logged, never fatal.
func (c *Cache) Entries(ctx context.Context) ([]models.LeaderboardEntry, error) {
	data, err := c.rdb.Get(ctx, snapshotKey).Bytes()
	if err == nil {
		var entries []models.LeaderboardEntry
		if jsonErr := json.Unmarshal(data, &entries); jsonErr == nil {
			return entries, nil
		}
		slog.Warn("corrupt leaderboard snapshot, reading from repository")
	} else if err != redis.Nil {
		slog.Warn("leaderboard snapshot read failed, reading from repository", "error", err)
	}

	return c.repo.ListEntries(ctx)
}

// Ping checks Redis connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
