package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/quest-forge/quest-engine/internal/models"
)

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "not_ready", "storage not ready")
		return
	}

	if s.cache != nil {
		if err := s.cache.Ping(r.Context()); err != nil {
			respondError(w, http.StatusServiceUnavailable, "not_ready", "cache not ready")
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// Leaderboard request bodies. Timestamps are unix milliseconds, matching
// what the workshop client sends.

type startLabRequest struct {
	ParticipantID string `json:"participantId"`
	LabID         string `json:"labId"`
	Timestamp     int64  `json:"timestamp"`
}

type completeLabRequest struct {
	ParticipantID string `json:"participantId"`
	LabID         string `json:"labId"`
	Points        int    `json:"points"`
	ElapsedMs     int64  `json:"elapsedMs"`
	Timestamp     int64  `json:"timestamp"`
}

type addPointsRequest struct {
	ParticipantID string `json:"participantId"`
	StepID        string `json:"stepId"`
	LabID         string `json:"labId"`
	Points        int    `json:"points"`
	Assisted      bool   `json:"assisted"`
	Hint          bool   `json:"hint"`
	Solution      bool   `json:"solution"`
	Timestamp     int64  `json:"timestamp"`
}

type heartbeatRequest struct {
	ParticipantID string `json:"participantId"`
	LabID         string `json:"labId"`
	Timestamp     int64  `json:"timestamp"`
}

type resetRequest struct {
	ParticipantID string `json:"participantId"`
	Timestamp     int64  `json:"timestamp"`
}

// eventTime converts a client-supplied unix-ms timestamp, falling back to
// the server clock when the client sent none.
func eventTime(ms int64) time.Time {
	if ms <= 0 {
		return time.Now().UTC()
	}
	return time.UnixMilli(ms).UTC()
}

// Leaderboard handlers

func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := s.listEntries(r)
	if err != nil {
		slog.Error("failed to list leaderboard entries", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list leaderboard entries")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"total":   len(entries),
	})
}

func (s *Server) listEntries(r *http.Request) ([]models.LeaderboardEntry, error) {
	if s.cache != nil {
		return s.cache.Entries(r.Context())
	}
	return s.repo.ListEntries(r.Context())
}

func (s *Server) handleStartLab(w http.ResponseWriter, r *http.Request) {
	var req startLabRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.ParticipantID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "participantId is required")
		return
	}

	if req.LabID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "labId is required")
		return
	}

	if err := s.repo.StartLab(r.Context(), req.ParticipantID, req.LabID, eventTime(req.Timestamp)); err != nil {
		slog.Error("failed to record lab start", "error", err, "participant", req.ParticipantID, "lab", req.LabID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to record lab start")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "lab start recorded",
	})
}

func (s *Server) handleCompleteLab(w http.ResponseWriter, r *http.Request) {
	var req completeLabRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.ParticipantID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "participantId is required")
		return
	}

	if req.LabID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "labId is required")
		return
	}

	if req.Points < 0 {
		respondError(w, http.StatusBadRequest, "validation_error", "points must not be negative")
		return
	}

	if err := s.repo.CompleteLab(r.Context(), req.ParticipantID, req.LabID, req.Points, req.ElapsedMs, eventTime(req.Timestamp)); err != nil {
		slog.Error("failed to record lab completion", "error", err, "participant", req.ParticipantID, "lab", req.LabID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to record lab completion")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "lab completion recorded",
	})
}

func (s *Server) handleAddPoints(w http.ResponseWriter, r *http.Request) {
	var req addPointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.ParticipantID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "participantId is required")
		return
	}

	if err := s.repo.AddPoints(r.Context(), req.ParticipantID, req.Points, req.Hint, req.Solution, eventTime(req.Timestamp)); err != nil {
		slog.Error("failed to add points", "error", err, "participant", req.ParticipantID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to add points")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "points recorded",
	})
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req heartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.ParticipantID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "participantId is required")
		return
	}

	if err := s.repo.Heartbeat(r.Context(), req.ParticipantID, eventTime(req.Timestamp)); err != nil {
		slog.Error("failed to record heartbeat", "error", err, "participant", req.ParticipantID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to record heartbeat")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "heartbeat recorded",
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.ParticipantID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "participantId is required")
		return
	}

	if err := s.repo.ResetEntry(r.Context(), req.ParticipantID, eventTime(req.Timestamp)); err != nil {
		slog.Error("failed to reset entry", "error", err, "participant", req.ParticipantID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to reset entry")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "entry reset",
	})
}
