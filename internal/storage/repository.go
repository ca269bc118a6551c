package storage

import (
	"context"
	"time"

	"github.com/quest-forge/quest-engine/internal/models"
)

// Repository defines the interface for leaderboard entry persistence. Every
// write is scoped to one participant key; there is no cross-participant
// write path.
type Repository interface {
	// GetEntry returns nil, nil when the participant has no entry yet.
	GetEntry(ctx context.Context, participantID string) (*models.LeaderboardEntry, error)
	ListEntries(ctx context.Context) ([]models.LeaderboardEntry, error)

	// AddPoints applies a score delta (clamped at zero) and optionally
	// bumps the hint/solution usage counters.
	AddPoints(ctx context.Context, participantID string, points int, hint, solution bool, at time.Time) error
	StartLab(ctx context.Context, participantID, labID string, at time.Time) error
	CompleteLab(ctx context.Context, participantID, labID string, score int, elapsedMs int64, at time.Time) error
	Heartbeat(ctx context.Context, participantID string, at time.Time) error

	// ResetEntry zeroes exactly this participant's entry.
	ResetEntry(ctx context.Context, participantID string, at time.Time) error

	// Health
	Ping(ctx context.Context) error
	Close() error
}
