package models

import "time"

// Participant is the locally persisted progress record for one workshop
// attendee, keyed by an opaque email-like identifier. All mutation goes
// through the session state machine; the invariant AssistedStepIDs ⊆
// CompletedStepIDs must hold after every operation.
type Participant struct {
	ID                string                   `json:"id"`
	Score             int                      `json:"score"`
	CompletedStepIDs  map[string]bool          `json:"completedStepIds"`
	AssistedStepIDs   map[string]bool          `json:"assistedStepIds"`
	CapturedFlagIDs   map[string]bool          `json:"capturedFlagIds"`
	CompletedQuestIDs map[string]bool          `json:"completedQuestIds"`
	CompletedLabIDs   map[string]bool          `json:"completedLabIds"`
	LabStartTimes     map[string]time.Time     `json:"labStartTimes"`
	LabTimes          map[string]time.Duration `json:"labTimes"`
}

// NewParticipant returns a zero-valued record with all sets allocated.
func NewParticipant(id string) *Participant {
	return &Participant{
		ID:                id,
		CompletedStepIDs:  make(map[string]bool),
		AssistedStepIDs:   make(map[string]bool),
		CapturedFlagIDs:   make(map[string]bool),
		CompletedQuestIDs: make(map[string]bool),
		CompletedLabIDs:   make(map[string]bool),
		LabStartTimes:     make(map[string]time.Time),
		LabTimes:          make(map[string]time.Duration),
	}
}

// Normalize allocates any nil sets. Records loaded from disk may predate
// fields added later; a nil map must never surface to callers.
func (p *Participant) Normalize() {
	if p.CompletedStepIDs == nil {
		p.CompletedStepIDs = make(map[string]bool)
	}
	if p.AssistedStepIDs == nil {
		p.AssistedStepIDs = make(map[string]bool)
	}
	if p.CapturedFlagIDs == nil {
		p.CapturedFlagIDs = make(map[string]bool)
	}
	if p.CompletedQuestIDs == nil {
		p.CompletedQuestIDs = make(map[string]bool)
	}
	if p.CompletedLabIDs == nil {
		p.CompletedLabIDs = make(map[string]bool)
	}
	if p.LabStartTimes == nil {
		p.LabStartTimes = make(map[string]time.Time)
	}
	if p.LabTimes == nil {
		p.LabTimes = make(map[string]time.Duration)
	}
}

// MarkStepCompleted records a completed step. The assisted set is only ever
// written here, which keeps it a subset of the completed set.
func (p *Participant) MarkStepCompleted(stepID string, assisted bool) {
	p.CompletedStepIDs[stepID] = true
	if assisted {
		p.AssistedStepIDs[stepID] = true
	}
}

// HasCompletedStep reports whether the step has reached its terminal state.
func (p *Participant) HasCompletedStep(stepID string) bool {
	return p.CompletedStepIDs[stepID]
}
