package progress

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/quest-forge/quest-engine/internal/models"
)

// FileStore keeps one JSON file per participant under a state directory.
// Corrupt or missing files are treated as "no record yet" and silently
// reinitialized rather than surfaced as errors.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates a store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Load reads the participant record, returning a zero-valued record when
// the file is absent or unreadable.
func (s *FileStore) Load(participantID string) (*models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(participantID))
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("failed to read participant state, reinitializing", "participant", participantID, "error", err)
		}
		return models.NewParticipant(participantID), nil
	}

	var p models.Participant
	if err := json.Unmarshal(data, &p); err != nil {
		slog.Warn("corrupt participant state, reinitializing", "participant", participantID, "error", err)
		return models.NewParticipant(participantID), nil
	}

	p.ID = participantID
	p.Normalize()
	return &p, nil
}

// Save overwrites the participant's record.
func (s *FileStore) Save(participantID string, p *models.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal participant state: %w", err)
	}

	if err := os.WriteFile(s.path(participantID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write participant state: %w", err)
	}
	return nil
}

// Reset replaces exactly this participant's record with a zero-valued one.
func (s *FileStore) Reset(participantID string) error {
	return s.Save(participantID, models.NewParticipant(participantID))
}

func (s *FileStore) path(participantID string) string {
	return filepath.Join(s.dir, sanitize(participantID)+".json")
}

// sanitize maps an email-like identifier onto a safe filename.
func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, id)
}
