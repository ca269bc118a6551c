package progress

import (
	"encoding/json"
	"sync"

	"github.com/quest-forge/quest-engine/internal/models"
)

// MemStore is a map-backed Store for tests and ephemeral sessions.
type MemStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string][]byte)}
}

// Load returns the stored record or a zero-valued one.
func (s *MemStore) Load(participantID string) (*models.Participant, error) {
	s.mu.RLock()
	data, ok := s.records[participantID]
	s.mu.RUnlock()
	if !ok {
		return models.NewParticipant(participantID), nil
	}

	var p models.Participant
	if err := json.Unmarshal(data, &p); err != nil {
		return models.NewParticipant(participantID), nil
	}
	p.Normalize()
	return &p, nil
}

// Save stores a snapshot of the record. Records are kept serialized so
// callers never share mutable state with the store.
func (s *MemStore) Save(participantID string, p *models.Participant) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.records[participantID] = data
	s.mu.Unlock()
	return nil
}

// Reset zeroes exactly this participant's record.
func (s *MemStore) Reset(participantID string) error {
	return s.Save(participantID, models.NewParticipant(participantID))
}
