package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quest-forge/quest-engine/internal/catalog"
	"github.com/quest-forge/quest-engine/internal/config"
	"github.com/quest-forge/quest-engine/internal/storage"
)

func newTestServer(t *testing.T, pin string) (*Server, *storage.MemoryRepository) {
	t.Helper()

	repo := storage.NewMemoryRepository()
	loader := testCatalog(t)
	srv := NewServer(config.ServerConfig{Host: "localhost", Port: 8080}, repo, nil, loader, pin)
	return srv, repo
}

func testCatalog(t *testing.T) *catalog.Loader {
	t.Helper()

	dir := t.TempDir()
	writeYAML(t, filepath.Join(dir, "labs", "csfle.yaml"), `
id: lab-csfle-basics
title: Client-Side Field Level Encryption Basics
steps:
  - id: create-data-key
    title: Create a data encryption key
    narrative: Mint a key.
    base_points: 10
  - id: encrypt-field
    title: Encrypt the SSN field
    narrative: Encrypt it.
    base_points: 15
`)
	writeYAML(t, filepath.Join(dir, "quests", "leak.yaml"), `
id: quest-stop-the-leak
title: Stop the Leak
lab_ids: [lab-csfle-basics]
overlays:
  - lab_id: lab-csfle-basics
    title_override: "Stop the Leak: Lock the Fields"
`)
	writeYAML(t, filepath.Join(dir, "templates", "workshop.yaml"), `
id: template-security-workshop
name: Security Workshop
lab_ids: [lab-csfle-basics]
gamification:
  enabled: true
`)

	loader := catalog.NewLoader()
	require.NoError(t, loader.LoadFromDir(dir))
	return loader
}

func writeYAML(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var resp struct {
		Success bool                   `json:"success"`
		Data    map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	return resp.Data
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, "")

	rec := doJSON(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAddPointsAndLeaderboard(t *testing.T) {
	srv, _ := newTestServer(t, "")

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/leaderboard/add-points",
		`{"participantId":"dev@example.com","stepId":"create-data-key","labId":"lab-csfle-basics","points":10,"timestamp":1764000000000}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/leaderboard", "")
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeData(t, rec)
	assert.EqualValues(t, 1, data["total"])
	entries := data["entries"].([]interface{})
	entry := entries[0].(map[string]interface{})
	assert.Equal(t, "dev@example.com", entry["participantId"])
	assert.EqualValues(t, 10, entry["score"])
}

func TestAddPointsValidation(t *testing.T) {
	srv, _ := newTestServer(t, "")

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/leaderboard/add-points", `{"points":10}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/leaderboard/add-points", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompleteLabHighWaterMark(t *testing.T) {
	srv, repo := newTestServer(t, "")

	body := `{"participantId":"dev@example.com","labId":"lab-csfle-basics","points":40,"elapsedMs":60000}`
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/leaderboard/complete-lab", body)
	require.Equal(t, http.StatusOK, rec.Code)

	// A stale lower report must not pull the score back down.
	body = `{"participantId":"dev@example.com","labId":"lab-csfle-basics","points":25,"elapsedMs":60000}`
	rec = doJSON(t, srv, http.MethodPost, "/api/v1/leaderboard/complete-lab", body)
	require.Equal(t, http.StatusOK, rec.Code)

	entry, err := repo.GetEntry(context.Background(), "dev@example.com")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 40, entry.Score)
	assert.Equal(t, []string{"lab-csfle-basics"}, entry.CompletedLabIDs)
}

func TestResetScopedToOneParticipant(t *testing.T) {
	srv, repo := newTestServer(t, "")

	doJSON(t, srv, http.MethodPost, "/api/v1/leaderboard/add-points",
		`{"participantId":"a@example.com","points":30}`)
	doJSON(t, srv, http.MethodPost, "/api/v1/leaderboard/add-points",
		`{"participantId":"b@example.com","points":20}`)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/leaderboard/reset",
		`{"participantId":"a@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	a, err := repo.GetEntry(context.Background(), "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, 0, a.Score)

	b, err := repo.GetEntry(context.Background(), "b@example.com")
	require.NoError(t, err)
	assert.Equal(t, 20, b.Score)
}

func TestHeartbeatTouchesLastActive(t *testing.T) {
	srv, repo := newTestServer(t, "")

	at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/leaderboard/heartbeat",
		`{"participantId":"dev@example.com","timestamp":`+strconv.FormatInt(at.UnixMilli(), 10)+`}`)
	require.Equal(t, http.StatusOK, rec.Code)

	entry, err := repo.GetEntry(context.Background(), "dev@example.com")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.True(t, entry.LastActive.Equal(at))
	assert.Equal(t, 0, entry.Score)
}

func TestCatalogEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, "")

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/catalog/labs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.EqualValues(t, 1, data["total"])

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/catalog/labs/lab-csfle-basics", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/catalog/labs/no-such-lab", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/catalog/quests/quest-stop-the-leak", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/catalog/templates/template-security-workshop", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEffectiveLabEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, "")

	rec := doJSON(t, srv, http.MethodGet,
		"/api/v1/catalog/labs/lab-csfle-basics/effective?quest=quest-stop-the-leak", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	assert.Equal(t, "lab-csfle-basics", resp.Data.ID)
	assert.Equal(t, "Stop the Leak: Lock the Fields", resp.Data.Title)

	rec = doJSON(t, srv, http.MethodGet,
		"/api/v1/catalog/labs/lab-csfle-basics/effective?quest=no-such-quest", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPinMiddleware(t *testing.T) {
	srv, _ := newTestServer(t, "4242")

	// Missing PIN is rejected.
	rec := doJSON(t, srv, http.MethodGet, "/api/v1/leaderboard", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Health stays public.
	rec = doJSON(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	// Correct PIN via header passes.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/leaderboard", nil)
	req.Header.Set("X-Workshop-Pin", "4242")
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	// Bearer token form works too.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/leaderboard", nil)
	req.Header.Set("Authorization", "Bearer 4242")
	rr = httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	// Wrong PIN is rejected.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/leaderboard", nil)
	req.Header.Set("X-Workshop-Pin", "0000")
	rr = httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
