// Package session drives a participant's progression through one effective
// lab: hint reveals, solution reveals, attempt submissions, and the flag,
// quest, and lab lifecycle events that feed the scoring pipeline.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/quest-forge/quest-engine/internal/leaderboard"
	"github.com/quest-forge/quest-engine/internal/models"
	"github.com/quest-forge/quest-engine/internal/progress"
	"github.com/quest-forge/quest-engine/internal/scoring"
)

// Illegal transitions are rejected with these errors. They are warnings,
// not failures: UI races like a double-click must never crash a session,
// so callers are free to ignore them.
var (
	ErrUnknownStep    = errors.New("step not part of this lab")
	ErrStepCompleted  = errors.New("step already completed")
	ErrHintOutOfOrder = errors.New("hints must be revealed in order")
	ErrNoSuchHint     = errors.New("no hint at this index")
	ErrFlagCaptured   = errors.New("flag already captured")
	ErrQuestCompleted = errors.New("quest already completed")
	ErrLabCompleted   = errors.New("lab already completed")
	ErrLabNotStarted  = errors.New("lab has not been started")
)

const defaultBasePoints = 10

// StepState is the per-step position in the one-way completion machine.
type StepState int

const (
	StepNotStarted StepState = iota
	StepInProgress
	StepCompleted // terminal
)

// Sink receives scoring output. ApplyLocalDelta is the optimistic local
// write (zero latency for the UI); the Push methods are best-effort network
// deliveries whose failure degrades the session to local-only scoring.
type Sink interface {
	ApplyLocalDelta(p *models.Participant, delta int, labID string) error
	PushDelta(participantID, stepID, labID string, delta int, assisted bool) <-chan leaderboard.PushResult
	PushLabStart(participantID, labID string, startedAt time.Time)
	PushLabComplete(participantID, labID string, score int, elapsed time.Duration)
	PushHeartbeat(participantID, labID string)
}

// CompletionResult describes the scoring outcome of a successful attempt.
type CompletionResult struct {
	Points   int
	Assisted bool
}

type stepState struct {
	step             models.Step
	state            StepState
	attempts         int
	hintsRevealed    []int
	solutionRevealed bool
}

// Session tracks one participant working through one effective lab. All
// methods are driven by a single-threaded UI event loop; the session itself
// performs no locking.
type Session struct {
	id          string
	lab         *models.EffectiveLab
	participant *models.Participant
	store       progress.Store
	policy      scoring.Policy
	sink        Sink
	steps       map[string]*stepState
	now         func() time.Time
}

// Option configures a session.
type Option func(*Session)

// WithClock overrides the session's time source.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// New starts a session for the participant over the resolved lab. Steps the
// participant has already completed in a previous session are restored as
// terminal, so reopening a lab never rescores old work.
func New(lab *models.EffectiveLab, participant *models.Participant, store progress.Store, policy scoring.Policy, sink Sink, opts ...Option) (*Session, error) {
	if lab == nil {
		return nil, fmt.Errorf("session requires a resolved lab")
	}
	if participant == nil {
		return nil, fmt.Errorf("session requires a participant")
	}
	if sink == nil {
		return nil, fmt.Errorf("session requires a score sink")
	}

	s := &Session{
		id:          uuid.NewString(),
		lab:         lab,
		participant: participant,
		store:       store,
		policy:      policy,
		sink:        sink,
		steps:       make(map[string]*stepState, len(lab.Steps)),
		now:         time.Now,
	}

	for _, step := range lab.Steps {
		st := &stepState{step: step}
		if participant.HasCompletedStep(step.ID) {
			st.state = StepCompleted
		}
		s.steps[step.ID] = st
	}

	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Participant returns the record the session mutates.
func (s *Session) Participant() *models.Participant { return s.participant }

// StepState reports the machine state for a step.
func (s *Session) StepState(stepID string) StepState {
	if st, ok := s.steps[stepID]; ok {
		return st.state
	}
	return StepNotStarted
}

// RevealHint reveals the hint at hintIndex and returns its text. Hints must
// be taken in order starting from index 0. No points move at reveal time;
// the penalty is realized when the step completes.
func (s *Session) RevealHint(stepID string, hintIndex int) (string, error) {
	st, ok := s.steps[stepID]
	if !ok {
		return "", ErrUnknownStep
	}
	if st.state == StepCompleted {
		return "", ErrStepCompleted
	}
	if hintIndex != len(st.hintsRevealed) {
		return "", ErrHintOutOfOrder
	}
	if hintIndex >= len(st.step.Hints) {
		return "", ErrNoSuchHint
	}

	st.hintsRevealed = append(st.hintsRevealed, hintIndex)
	if st.state == StepNotStarted {
		st.state = StepInProgress
	}
	return st.step.Hints[hintIndex], nil
}

// RevealSolution reveals the full solution for a step. The step's eventual
// award takes a flat penalty and is recorded as assisted regardless of
// attempt count.
func (s *Session) RevealSolution(stepID string) (string, error) {
	st, ok := s.steps[stepID]
	if !ok {
		return "", ErrUnknownStep
	}
	if st.state == StepCompleted {
		return "", ErrStepCompleted
	}

	st.solutionRevealed = true
	if st.state == StepNotStarted {
		st.state = StepInProgress
	}
	return st.step.Solution, nil
}

// SubmitAttempt records a verification outcome for a step. An incorrect
// attempt leaves the step in progress; retries are unlimited. The first
// correct attempt transitions the step to its terminal state, computes the
// award, persists the participant, and pushes the delta to the leaderboard.
// Submitting against a completed step is a no-op.
func (s *Session) SubmitAttempt(stepID string, correct bool) (*CompletionResult, error) {
	st, ok := s.steps[stepID]
	if !ok {
		return nil, ErrUnknownStep
	}
	if st.state == StepCompleted {
		return nil, ErrStepCompleted
	}

	st.attempts++
	st.state = StepInProgress
	if !correct {
		return nil, nil
	}

	base := st.step.BasePoints
	if base <= 0 {
		base = defaultBasePoints
	}
	points := s.policy.Award(base, st.attempts, len(st.hintsRevealed), st.solutionRevealed)
	assisted := st.attempts > 1 || len(st.hintsRevealed) > 0 || st.solutionRevealed

	st.state = StepCompleted
	s.participant.MarkStepCompleted(stepID, assisted)

	if err := s.sink.ApplyLocalDelta(s.participant, points, s.lab.ID); err != nil {
		return nil, fmt.Errorf("failed to apply score delta: %w", err)
	}
	s.sink.PushDelta(s.participant.ID, stepID, s.lab.ID, points, assisted)

	return &CompletionResult{Points: points, Assisted: assisted}, nil
}

// CaptureFlag awards the flat flag bonus once per flag.
func (s *Session) CaptureFlag(flag *models.Flag) (int, error) {
	if s.participant.CapturedFlagIDs[flag.ID] {
		return 0, ErrFlagCaptured
	}
	s.participant.CapturedFlagIDs[flag.ID] = true

	points := s.policy.FlagAward(flag.Points)
	if err := s.sink.ApplyLocalDelta(s.participant, points, s.lab.ID); err != nil {
		return 0, fmt.Errorf("failed to apply flag bonus: %w", err)
	}
	s.sink.PushDelta(s.participant.ID, "flag:"+flag.ID, s.lab.ID, points, false)
	return points, nil
}

// CompleteQuest awards the flat quest bonus once per quest.
func (s *Session) CompleteQuest(questID string) (int, error) {
	if s.participant.CompletedQuestIDs[questID] {
		return 0, ErrQuestCompleted
	}
	s.participant.CompletedQuestIDs[questID] = true

	points := s.policy.QuestAward()
	if err := s.sink.ApplyLocalDelta(s.participant, points, s.lab.ID); err != nil {
		return 0, fmt.Errorf("failed to apply quest bonus: %w", err)
	}
	s.sink.PushDelta(s.participant.ID, "quest:"+questID, s.lab.ID, points, false)
	return points, nil
}

// StartLab records the lab start time (first start wins) and notifies the
// leaderboard.
func (s *Session) StartLab() error {
	startedAt, started := s.participant.LabStartTimes[s.lab.ID]
	if !started {
		startedAt = s.now()
		s.participant.LabStartTimes[s.lab.ID] = startedAt
		if err := s.store.Save(s.participant.ID, s.participant); err != nil {
			return fmt.Errorf("failed to persist lab start: %w", err)
		}
	}
	s.sink.PushLabStart(s.participant.ID, s.lab.ID, startedAt)
	return nil
}

// CompleteLab marks the lab completed, accumulates its elapsed time, and
// reports the participant's score high-water mark to the leaderboard.
// Completing an already-completed lab is a no-op.
func (s *Session) CompleteLab() (time.Duration, error) {
	if s.participant.CompletedLabIDs[s.lab.ID] {
		return s.participant.LabTimes[s.lab.ID], ErrLabCompleted
	}
	startedAt, started := s.participant.LabStartTimes[s.lab.ID]
	if !started {
		return 0, ErrLabNotStarted
	}

	elapsed := s.now().Sub(startedAt)
	s.participant.LabTimes[s.lab.ID] += elapsed
	s.participant.CompletedLabIDs[s.lab.ID] = true
	if err := s.store.Save(s.participant.ID, s.participant); err != nil {
		return 0, fmt.Errorf("failed to persist lab completion: %w", err)
	}

	s.sink.PushLabComplete(s.participant.ID, s.lab.ID, s.participant.Score, s.participant.LabTimes[s.lab.ID])
	return s.participant.LabTimes[s.lab.ID], nil
}

// Heartbeat reports activity while the lab view is mounted.
func (s *Session) Heartbeat() {
	s.sink.PushHeartbeat(s.participant.ID, s.lab.ID)
}
