package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddPointsClampsAtZero(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	at := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.AddPoints(ctx, "dev@example.com", 10, false, false, at))
	require.NoError(t, repo.AddPoints(ctx, "dev@example.com", -25, false, false, at))

	entry, err := repo.GetEntry(ctx, "dev@example.com")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 0, entry.Score)
}

func TestAddPointsCountsAssists(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	at := time.Now().UTC()

	require.NoError(t, repo.AddPoints(ctx, "dev@example.com", 7, true, false, at))
	require.NoError(t, repo.AddPoints(ctx, "dev@example.com", 5, true, true, at))

	entry, err := repo.GetEntry(ctx, "dev@example.com")
	require.NoError(t, err)
	assert.Equal(t, 12, entry.Score)
	assert.Equal(t, 2, entry.HintsUsed)
	assert.Equal(t, 1, entry.SolutionsRevealed)
}

func TestGetEntryAbsent(t *testing.T) {
	repo := NewMemoryRepository()

	entry, err := repo.GetEntry(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestStartLabFirstStartWins(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	first := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	second := first.Add(10 * time.Minute)

	require.NoError(t, repo.StartLab(ctx, "dev@example.com", "lab-csfle-basics", first))
	require.NoError(t, repo.StartLab(ctx, "dev@example.com", "lab-csfle-basics", second))

	entry, err := repo.GetEntry(ctx, "dev@example.com")
	require.NoError(t, err)
	assert.Equal(t, first.UnixMilli(), entry.LabStarts["lab-csfle-basics"])
	assert.True(t, entry.LastActive.Equal(second))
}

func TestCompleteLabHighWaterMark(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	at := time.Now().UTC()

	require.NoError(t, repo.CompleteLab(ctx, "dev@example.com", "lab-csfle-basics", 40, 60000, at))
	require.NoError(t, repo.CompleteLab(ctx, "dev@example.com", "lab-csfle-basics", 25, 0, at))

	entry, err := repo.GetEntry(ctx, "dev@example.com")
	require.NoError(t, err)
	assert.Equal(t, 40, entry.Score, "stale lower score must not win")
	assert.Equal(t, []string{"lab-csfle-basics"}, entry.CompletedLabIDs)
	assert.Equal(t, int64(60000), entry.LabTimes["lab-csfle-basics"])
}

func TestCompleteLabElapsedFromStart(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	done := start.Add(42 * time.Minute)

	require.NoError(t, repo.StartLab(ctx, "dev@example.com", "lab-csfle-basics", start))
	require.NoError(t, repo.CompleteLab(ctx, "dev@example.com", "lab-csfle-basics", 30, 0, done))

	entry, err := repo.GetEntry(ctx, "dev@example.com")
	require.NoError(t, err)
	assert.Equal(t, (42 * time.Minute).Milliseconds(), entry.LabTimes["lab-csfle-basics"])
}

func TestResetEntryScoped(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	at := time.Now().UTC()

	require.NoError(t, repo.AddPoints(ctx, "a@example.com", 30, false, false, at))
	require.NoError(t, repo.AddPoints(ctx, "b@example.com", 20, false, false, at))

	require.NoError(t, repo.ResetEntry(ctx, "a@example.com", at))

	a, err := repo.GetEntry(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, 0, a.Score)

	b, err := repo.GetEntry(ctx, "b@example.com")
	require.NoError(t, err)
	assert.Equal(t, 20, b.Score)
}

func TestListEntriesStableOrderAndIsolation(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	at := time.Now().UTC()

	require.NoError(t, repo.AddPoints(ctx, "b@example.com", 20, false, false, at))
	require.NoError(t, repo.AddPoints(ctx, "a@example.com", 30, false, false, at))

	entries, err := repo.ListEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a@example.com", entries[0].ParticipantID)
	assert.Equal(t, "b@example.com", entries[1].ParticipantID)

	// Returned entries are copies; mutating them must not leak back.
	entries[0].Score = 999
	fresh, err := repo.GetEntry(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, 30, fresh.Score)
}
