// Package leaderboard owns the eventually-consistent score view: the
// participant-side reconciler that pushes local deltas and polls the shared
// leaderboard, and the server-side snapshot cache that serves it.
package leaderboard

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/quest-forge/quest-engine/internal/models"
	"github.com/quest-forge/quest-engine/internal/progress"
	"github.com/quest-forge/quest-engine/pkg/client"
)

// PushResult reports the outcome of a best-effort delta delivery. Failure
// never propagates to the caller's control flow; the result exists so a
// retry/backoff layer can be added without changing the calling contract.
type PushResult int

const (
	PushDelivered PushResult = iota
	PushQueued               // no transport configured; delta held locally
	PushFailed
)

func (r PushResult) String() string {
	switch r {
	case PushDelivered:
		return "delivered"
	case PushQueued:
		return "queued"
	case PushFailed:
		return "failed"
	}
	return "unknown"
}

// DefaultPollInterval is how often the leaderboard view re-pulls the
// canonical entry set while mounted.
const DefaultPollInterval = 5 * time.Second

// Reconciler keeps a participant's locally computed score and the shared
// server-held leaderboard converging. Local writes are optimistic and
// zero-latency; pushes are fire-and-forget; pulls replace the cached
// snapshot wholesale.
type Reconciler struct {
	client      *client.Client
	store       progress.Store
	interval    time.Duration
	pushTimeout time.Duration
	now         func() time.Time

	mu       sync.RWMutex
	snapshot []models.LeaderboardEntry
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithPollInterval overrides the leaderboard poll interval.
func WithPollInterval(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) { r.interval = d }
}

// WithPushTimeout bounds each fire-and-forget delivery attempt.
func WithPushTimeout(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) { r.pushTimeout = d }
}

// WithReconcilerClock overrides the reconciler's time source.
func WithReconcilerClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) { r.now = now }
}

// NewReconciler creates a reconciler. A nil client puts the reconciler in
// local-only mode: the participant still sees their own progress and score,
// pushes report PushQueued, and the snapshot stays empty.
func NewReconciler(c *client.Client, store progress.Store, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		client:      c,
		store:       store,
		interval:    DefaultPollInterval,
		pushTimeout: 5 * time.Second,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ApplyLocalDelta mutates the participant's local score and persists it.
// The UI reflects the change before any network round trip happens.
func (r *Reconciler) ApplyLocalDelta(p *models.Participant, delta int, labID string) error {
	p.Score += delta
	if p.Score < 0 {
		p.Score = 0
	}
	if err := r.store.Save(p.ID, p); err != nil {
		return err
	}
	slog.Debug("applied local score delta", "participant", p.ID, "delta", delta, "lab_id", labID, "score", p.Score)
	return nil
}

// PushDelta reports a score delta to the server without blocking. The
// returned channel yields exactly one result and may be ignored.
func (r *Reconciler) PushDelta(participantID, stepID, labID string, delta int, assisted bool) <-chan PushResult {
	results := make(chan PushResult, 1)
	if r.client == nil {
		results <- PushQueued
		close(results)
		return results
	}

	go func() {
		defer close(results)
		ctx, cancel := context.WithTimeout(context.Background(), r.pushTimeout)
		defer cancel()

		err := r.client.AddPoints(ctx, client.AddPointsRequest{
			ParticipantID: participantID,
			StepID:        stepID,
			LabID:         labID,
			Points:        delta,
			Assisted:      assisted,
			Timestamp:     r.now().UnixMilli(),
		})
		if err != nil {
			slog.Warn("failed to push score delta, local state remains authoritative",
				"participant", participantID, "step_id", stepID, "delta", delta, "error", err)
			results <- PushFailed
			return
		}
		results <- PushDelivered
	}()
	return results
}

// PushLabStart reports a lab start, best-effort.
func (r *Reconciler) PushLabStart(participantID, labID string, startedAt time.Time) {
	if r.client == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.pushTimeout)
		defer cancel()

		err := r.client.StartLab(ctx, client.StartLabRequest{
			ParticipantID: participantID,
			LabID:         labID,
			Timestamp:     startedAt.UnixMilli(),
		})
		if err != nil {
			slog.Warn("failed to push lab start", "participant", participantID, "lab_id", labID, "error", err)
		}
	}()
}

// PushLabComplete reports a lab completion, best-effort.
func (r *Reconciler) PushLabComplete(participantID, labID string, score int, elapsed time.Duration) {
	if r.client == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.pushTimeout)
		defer cancel()

		err := r.client.CompleteLab(ctx, client.CompleteLabRequest{
			ParticipantID: participantID,
			LabID:         labID,
			Score:         score,
			ElapsedMs:     elapsed.Milliseconds(),
			Timestamp:     r.now().UnixMilli(),
		})
		if err != nil {
			slog.Warn("failed to push lab completion", "participant", participantID, "lab_id", labID, "error", err)
		}
	}()
}

// PushHeartbeat touches the participant's last-active timestamp, best-effort.
func (r *Reconciler) PushHeartbeat(participantID, labID string) {
	if r.client == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.pushTimeout)
		defer cancel()

		if err := r.client.Heartbeat(ctx, client.HeartbeatRequest{ParticipantID: participantID, LabID: labID}); err != nil {
			slog.Debug("heartbeat failed", "participant", participantID, "error", err)
		}
	}()
}

// Run polls the server on the configured interval until ctx is cancelled
// (the leaderboard view unmounting cancels it). The first pull happens
// immediately.
func (r *Reconciler) Run(ctx context.Context) {
	slog.Info("leaderboard poll started", "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.Refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("leaderboard poll stopped")
			return
		case <-ticker.C:
			r.Refresh(ctx)
		}
	}
}

// Refresh pulls the canonical entry set and replaces the cached snapshot
// wholesale. On network failure the previous snapshot is kept and the
// reconciler degrades to local-only until the next successful pull.
func (r *Reconciler) Refresh(ctx context.Context) error {
	if r.client == nil {
		return nil
	}

	entries, err := r.client.Entries(ctx)
	if err != nil {
		slog.Warn("leaderboard pull failed, keeping previous snapshot", "error", err)
		return err
	}

	r.mu.Lock()
	r.snapshot = entries
	r.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the last pulled entry set in arrival order.
func (r *Reconciler) Snapshot() []models.LeaderboardEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.LeaderboardEntry, len(r.snapshot))
	copy(out, r.snapshot)
	return out
}

// Ranked returns the snapshot sorted for display: score descending, then
// completed-lab count descending, then earliest last-active first.
func (r *Reconciler) Ranked() []models.LeaderboardEntry {
	entries := r.Snapshot()
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if len(a.CompletedLabIDs) != len(b.CompletedLabIDs) {
			return len(a.CompletedLabIDs) > len(b.CompletedLabIDs)
		}
		return a.LastActive.Before(b.LastActive)
	})
	return entries
}
