package models

import "time"

// LeaderboardEntry is the server-held convergence target for one
// participant's locally computed score. Until the next successful sync the
// two may diverge by the sum of unacknowledged local deltas.
type LeaderboardEntry struct {
	ParticipantID     string           `json:"participantId"`
	Score             int              `json:"score"`
	CompletedLabIDs   []string         `json:"completedLabIds"`
	LabTimes          map[string]int64 `json:"labTimes"` // lab id -> elapsed ms
	LabStarts         map[string]int64 `json:"labStarts,omitempty"`
	LastActive        time.Time        `json:"lastActive"`
	HintsUsed         int              `json:"hintsUsed"`
	SolutionsRevealed int              `json:"solutionsRevealed"`
}

// NewLeaderboardEntry returns a zero-valued entry for the participant.
func NewLeaderboardEntry(participantID string) *LeaderboardEntry {
	return &LeaderboardEntry{
		ParticipantID:   participantID,
		CompletedLabIDs: []string{},
		LabTimes:        make(map[string]int64),
		LabStarts:       make(map[string]int64),
	}
}

// HasCompletedLab reports membership in the completed-lab list.
func (e *LeaderboardEntry) HasCompletedLab(labID string) bool {
	for _, id := range e.CompletedLabIDs {
		if id == labID {
			return true
		}
	}
	return false
}
