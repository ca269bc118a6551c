package models

// Lab is a read-only catalog entity: an ordered list of steps with default
// narrative. Labs are shared across quests and templates; per-context
// customization happens through overlays, never by mutating the lab itself.
type Lab struct {
	ID          string `json:"id" yaml:"id"`
	TopicID     string `json:"topicId,omitempty" yaml:"topic_id"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description"`
	Difficulty  string `json:"difficulty,omitempty" yaml:"difficulty"` // beginner | intermediate | advanced
	Steps       []Step `json:"steps" yaml:"steps"`
}

// Step is one unit of work inside a lab. VerificationID names the external
// check that decides whether a submission is correct; the engine treats it
// as opaque.
type Step struct {
	ID             string   `json:"id" yaml:"id"`
	Title          string   `json:"title" yaml:"title"`
	Narrative      string   `json:"narrative" yaml:"narrative"`
	BasePoints     int      `json:"basePoints" yaml:"base_points"`
	VerificationID string   `json:"verificationId,omitempty" yaml:"verification_id"`
	Hints          []string `json:"hints,omitempty" yaml:"hints"`
	Solution       string   `json:"solution,omitempty" yaml:"solution"`
}

// Quest groups labs into a narrative arc. Quest-level overlays take
// precedence over template-level ones.
type Quest struct {
	ID               string    `json:"id" yaml:"id"`
	Title            string    `json:"title" yaml:"title"`
	StoryContext     string    `json:"storyContext,omitempty" yaml:"story_context"`
	ObjectiveSummary string    `json:"objectiveSummary,omitempty" yaml:"objective_summary"`
	LabIDs           []string  `json:"labIds" yaml:"lab_ids"`
	RequiredFlagIDs  []string  `json:"requiredFlagIds,omitempty" yaml:"required_flag_ids"`
	Overlays         []Overlay `json:"overlays,omitempty" yaml:"overlays"`
}

// Template is a workshop configuration: which labs and quests run, with what
// scoring knobs, and optionally template-wide overlays.
type Template struct {
	ID           string             `json:"id" yaml:"id"`
	Name         string             `json:"name" yaml:"name"`
	Description  string             `json:"description,omitempty" yaml:"description"`
	LabIDs       []string           `json:"labIds" yaml:"lab_ids"`
	QuestIDs     []string           `json:"questIds,omitempty" yaml:"quest_ids"`
	Gamification GamificationConfig `json:"gamification" yaml:"gamification"`
	Overlays     []Overlay          `json:"overlays,omitempty" yaml:"overlays"`
}

// GamificationConfig holds per-template scoring knobs.
type GamificationConfig struct {
	Enabled             bool `json:"enabled" yaml:"enabled"`
	BasePointsPerStep   int  `json:"basePointsPerStep,omitempty" yaml:"base_points_per_step"`
	BonusPointsPerFlag  int  `json:"bonusPointsPerFlag,omitempty" yaml:"bonus_points_per_flag"`
	BonusPointsPerQuest int  `json:"bonusPointsPerQuest,omitempty" yaml:"bonus_points_per_quest"`
}

// Flag is a capturable objective worth a flat bonus.
type Flag struct {
	ID             string `json:"id" yaml:"id"`
	Name           string `json:"name" yaml:"name"`
	Description    string `json:"description,omitempty" yaml:"description"`
	VerificationID string `json:"verificationId,omitempty" yaml:"verification_id"`
	Points         int    `json:"points,omitempty" yaml:"points"`
}

// Overlay customizes a lab's narrative within a quest or template context
// without duplicating the lab definition. Only narrative text and step
// inclusion are affected; step identity, base points, and verification IDs
// pass through untouched.
type Overlay struct {
	LabID                  string            `json:"labId" yaml:"lab_id"`
	TitleOverride          string            `json:"titleOverride,omitempty" yaml:"title_override"`
	DescriptionOverride    string            `json:"descriptionOverride,omitempty" yaml:"description_override"`
	IntroNarrative         string            `json:"introNarrative,omitempty" yaml:"intro_narrative"`
	OutroNarrative         string            `json:"outroNarrative,omitempty" yaml:"outro_narrative"`
	StepNarrativeOverrides map[string]string `json:"stepNarrativeOverrides,omitempty" yaml:"step_narrative_overrides"`
	StepFilter             *StepFilter       `json:"stepFilter,omitempty" yaml:"step_filter"`
}

// StepFilter restricts which steps of a lab show in a given context.
// StepIDs is an allow-list; ExcludeStepIDs is applied after it.
type StepFilter struct {
	StepIDs        []string `json:"stepIds,omitempty" yaml:"step_ids"`
	ExcludeStepIDs []string `json:"excludeStepIds,omitempty" yaml:"exclude_step_ids"`
}

// EffectiveLab is the resolved view of a lab for one (quest, template)
// context: overlays applied, filtered step set, context narrative attached.
type EffectiveLab struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	Difficulty     string   `json:"difficulty,omitempty"`
	IntroNarrative string   `json:"introNarrative,omitempty"`
	OutroNarrative string   `json:"outroNarrative,omitempty"`
	Steps          []Step   `json:"steps"`
	Warnings       []string `json:"warnings,omitempty"`
}
