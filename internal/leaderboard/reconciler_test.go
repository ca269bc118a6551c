package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quest-forge/quest-engine/internal/models"
	"github.com/quest-forge/quest-engine/internal/progress"
	"github.com/quest-forge/quest-engine/pkg/client"
)

func okBody(data interface{}) string {
	payload, _ := json.Marshal(map[string]interface{}{
		"success": true,
		"data":    data,
	})
	return string(payload)
}

func TestApplyLocalDelta(t *testing.T) {
	store := progress.NewMemStore()
	r := NewReconciler(nil, store)

	p := models.NewParticipant("dev@example.com")
	require.NoError(t, r.ApplyLocalDelta(p, 10, "lab-csfle-basics"))
	assert.Equal(t, 10, p.Score)

	require.NoError(t, r.ApplyLocalDelta(p, -25, "lab-csfle-basics"))
	assert.Equal(t, 0, p.Score, "score must not go negative")

	// The mutation must be persisted, not just held in memory.
	loaded, err := store.Load("dev@example.com")
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Score)
}

func TestPushDeltaDelivered(t *testing.T) {
	var got client.AddPointsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		require.Equal(t, "/api/v1/leaderboard/add-points", req.URL.Path)
		require.NoError(t, json.NewDecoder(req.Body).Decode(&got))
		fmt.Fprint(w, okBody(map[string]string{"message": "points recorded"}))
	}))
	defer srv.Close()

	r := NewReconciler(client.New(srv.URL, ""), progress.NewMemStore())

	result := <-r.PushDelta("dev@example.com", "create-data-key", "lab-csfle-basics", 7, true)
	assert.Equal(t, PushDelivered, result)
	assert.Equal(t, "dev@example.com", got.ParticipantID)
	assert.Equal(t, "create-data-key", got.StepID)
	assert.Equal(t, 7, got.Points)
	assert.True(t, got.Assisted)
}

func TestPushDeltaFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"success":false,"error":{"code":"internal_error","message":"boom"}}`)
	}))
	defer srv.Close()

	r := NewReconciler(client.New(srv.URL, ""), progress.NewMemStore())

	result := <-r.PushDelta("dev@example.com", "create-data-key", "lab-csfle-basics", 7, false)
	assert.Equal(t, PushFailed, result)
}

func TestPushDeltaLocalOnlyMode(t *testing.T) {
	r := NewReconciler(nil, progress.NewMemStore())

	result := <-r.PushDelta("dev@example.com", "create-data-key", "lab-csfle-basics", 7, false)
	assert.Equal(t, PushQueued, result)
}

func TestRefreshReplacesSnapshot(t *testing.T) {
	entries := []models.LeaderboardEntry{
		{ParticipantID: "a@example.com", Score: 30},
		{ParticipantID: "b@example.com", Score: 20},
	}
	fail := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if fail {
			w.WriteHeader(http.StatusBadGateway)
			fmt.Fprint(w, `{"success":false,"error":{"code":"internal_error","message":"down"}}`)
			return
		}
		fmt.Fprint(w, okBody(map[string]interface{}{"entries": entries, "total": len(entries)}))
	}))
	defer srv.Close()

	r := NewReconciler(client.New(srv.URL, ""), progress.NewMemStore())

	require.NoError(t, r.Refresh(context.Background()))
	require.Len(t, r.Snapshot(), 2)

	// A failed pull keeps the previous snapshot.
	fail = true
	assert.Error(t, r.Refresh(context.Background()))
	assert.Len(t, r.Snapshot(), 2)

	// A later successful pull replaces it wholesale, including removals.
	fail = false
	entries = entries[:1]
	require.NoError(t, r.Refresh(context.Background()))
	require.Len(t, r.Snapshot(), 1)
	assert.Equal(t, "a@example.com", r.Snapshot()[0].ParticipantID)
}

func TestRankedOrdering(t *testing.T) {
	early := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)

	r := NewReconciler(nil, progress.NewMemStore())
	r.snapshot = []models.LeaderboardEntry{
		{ParticipantID: "low", Score: 10, LastActive: early},
		{ParticipantID: "tied-late", Score: 30, CompletedLabIDs: []string{"l1"}, LastActive: late},
		{ParticipantID: "tied-early", Score: 30, CompletedLabIDs: []string{"l1"}, LastActive: early},
		{ParticipantID: "more-labs", Score: 30, CompletedLabIDs: []string{"l1", "l2"}, LastActive: late},
	}

	ranked := r.Ranked()
	require.Len(t, ranked, 4)
	assert.Equal(t, "more-labs", ranked[0].ParticipantID)
	assert.Equal(t, "tied-early", ranked[1].ParticipantID)
	assert.Equal(t, "tied-late", ranked[2].ParticipantID)
	assert.Equal(t, "low", ranked[3].ParticipantID)
}

func TestRunPollsUntilCancelled(t *testing.T) {
	pulls := make(chan struct{}, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		pulls <- struct{}{}
		fmt.Fprint(w, okBody(map[string]interface{}{"entries": []models.LeaderboardEntry{}, "total": 0}))
	}))
	defer srv.Close()

	r := NewReconciler(client.New(srv.URL, ""), progress.NewMemStore(),
		WithPollInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	// First pull is immediate, then at least one more from the ticker.
	for i := 0; i < 2; i++ {
		select {
		case <-pulls:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for leaderboard pull")
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}
