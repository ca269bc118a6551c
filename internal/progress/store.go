// Package progress persists per-participant workshop state. The store is
// injected into the engine so sessions can run against a file, memory, or
// any future backend without ambient global state.
package progress

import "github.com/quest-forge/quest-engine/internal/models"

// Store is durable key-value persistence scoped per participant identifier.
//
// Load never fails for unknown participants: it returns a zero-valued
// record instead. Save is a full overwrite; callers own read-modify-write
// (single writer per participant is assumed). Reset zeroes exactly one
// participant's record and must not touch any other.
type Store interface {
	Load(participantID string) (*models.Participant, error)
	Save(participantID string, p *models.Participant) error
	Reset(participantID string) error
}
