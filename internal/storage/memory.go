package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/quest-forge/quest-engine/internal/models"
)

// MemoryRepository implements Repository with an in-process map. It backs
// single-instance deployments without Postgres and the API handler tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries map[string]*models.LeaderboardEntry
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{entries: make(map[string]*models.LeaderboardEntry)}
}

// GetEntry returns a copy of the participant's entry, or nil when absent.
func (r *MemoryRepository) GetEntry(ctx context.Context, participantID string) (*models.LeaderboardEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[participantID]
	if !ok {
		return nil, nil
	}
	return copyEntry(entry), nil
}

// ListEntries returns copies of all entries ordered by participant key.
func (r *MemoryRepository) ListEntries(ctx context.Context) ([]models.LeaderboardEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	entries := make([]models.LeaderboardEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, *copyEntry(r.entries[id]))
	}
	return entries, nil
}

// AddPoints applies a score delta, clamped at zero.
func (r *MemoryRepository) AddPoints(ctx context.Context, participantID string, points int, hint, solution bool, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := r.getOrNew(participantID)
	entry.Score += points
	if entry.Score < 0 {
		entry.Score = 0
	}
	if hint {
		entry.HintsUsed++
	}
	if solution {
		entry.SolutionsRevealed++
	}
	entry.LastActive = at
	return nil
}

// StartLab records the lab start timestamp.
func (r *MemoryRepository) StartLab(ctx context.Context, participantID, labID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := r.getOrNew(participantID)
	if _, started := entry.LabStarts[labID]; !started {
		entry.LabStarts[labID] = at.UnixMilli()
	}
	entry.LastActive = at
	return nil
}

// CompleteLab marks the lab completed and accumulates elapsed time.
func (r *MemoryRepository) CompleteLab(ctx context.Context, participantID, labID string, score int, elapsedMs int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := r.getOrNew(participantID)
	if !entry.HasCompletedLab(labID) {
		entry.CompletedLabIDs = append(entry.CompletedLabIDs, labID)
	}
	if elapsedMs == 0 {
		if start, ok := entry.LabStarts[labID]; ok {
			elapsedMs = at.UnixMilli() - start
		}
	}
	if elapsedMs > 0 {
		entry.LabTimes[labID] += elapsedMs
	}
	if score > entry.Score {
		entry.Score = score
	}
	entry.LastActive = at
	return nil
}

// Heartbeat touches the last-active timestamp.
func (r *MemoryRepository) Heartbeat(ctx context.Context, participantID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := r.getOrNew(participantID)
	entry.LastActive = at
	return nil
}

// ResetEntry zeroes exactly this participant's entry.
func (r *MemoryRepository) ResetEntry(ctx context.Context, participantID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := models.NewLeaderboardEntry(participantID)
	entry.LastActive = at
	r.entries[participantID] = entry
	return nil
}

// Ping always succeeds.
func (r *MemoryRepository) Ping(ctx context.Context) error { return nil }

// Close is a no-op.
func (r *MemoryRepository) Close() error { return nil }

func (r *MemoryRepository) getOrNew(participantID string) *models.LeaderboardEntry {
	entry, ok := r.entries[participantID]
	if !ok {
		entry = models.NewLeaderboardEntry(participantID)
		r.entries[participantID] = entry
	}
	return entry
}

func copyEntry(entry *models.LeaderboardEntry) *models.LeaderboardEntry {
	out := *entry
	out.CompletedLabIDs = append([]string{}, entry.CompletedLabIDs...)
	out.LabTimes = make(map[string]int64, len(entry.LabTimes))
	for k, v := range entry.LabTimes {
		out.LabTimes[k] = v
	}
	out.LabStarts = make(map[string]int64, len(entry.LabStarts))
	for k, v := range entry.LabStarts {
		out.LabStarts[k] = v
	}
	return &out
}
