// Package overlay resolves the effective view of a lab for a quest/template
// context. Labs are shared content; quests and templates attach narrative
// overlays on top without mutating the base definition.
package overlay

import (
	"log/slog"
	"sync"

	"github.com/quest-forge/quest-engine/internal/models"
)

// Resolver computes effective labs and memoizes the result by
// (labID, questID, templateID). Resolution is a pure function of its
// inputs, so cached views never go stale while the catalog is immutable.
type Resolver struct {
	mu    sync.RWMutex
	cache map[cacheKey]*models.EffectiveLab
}

type cacheKey struct {
	labID      string
	questID    string
	templateID string
}

// NewResolver creates an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{cache: make(map[cacheKey]*models.EffectiveLab)}
}

// Resolve produces the effective lab for the given context. Quest and
// template may be nil. Precedence: the quest overlay wins field-by-field
// over the template overlay; the narrative override map is merged per step
// key, never replaced wholesale.
func (r *Resolver) Resolve(lab *models.Lab, quest *models.Quest, template *models.Template) *models.EffectiveLab {
	if lab == nil {
		return nil
	}

	key := cacheKey{labID: lab.ID}
	if quest != nil {
		key.questID = quest.ID
	}
	if template != nil {
		key.templateID = template.ID
	}

	r.mu.RLock()
	cached, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return cached
	}

	var templateOverlay, questOverlay *models.Overlay
	if template != nil {
		templateOverlay = overlayFor(template.Overlays, lab.ID)
	}
	if quest != nil {
		questOverlay = overlayFor(quest.Overlays, lab.ID)
	}

	effective := apply(lab, MergeOverlays(templateOverlay, questOverlay))

	r.mu.Lock()
	r.cache[key] = effective
	r.mu.Unlock()

	return effective
}

// MergeOverlays combines a base (template-level) overlay with an override
// (quest-level) overlay. Scalar fields: override wins when non-empty.
// StepNarrativeOverrides: per-key merge, override keys take precedence.
// StepFilter: override's filter if present, else base's.
func MergeOverlays(base, override *models.Overlay) *models.Overlay {
	if base == nil {
		return override
	}
	if override == nil {
		return base
	}

	merged := &models.Overlay{
		LabID:               base.LabID,
		TitleOverride:       pick(override.TitleOverride, base.TitleOverride),
		DescriptionOverride: pick(override.DescriptionOverride, base.DescriptionOverride),
		IntroNarrative:      pick(override.IntroNarrative, base.IntroNarrative),
		OutroNarrative:      pick(override.OutroNarrative, base.OutroNarrative),
		StepFilter:          base.StepFilter,
	}
	if override.StepFilter != nil {
		merged.StepFilter = override.StepFilter
	}

	if len(base.StepNarrativeOverrides) > 0 || len(override.StepNarrativeOverrides) > 0 {
		merged.StepNarrativeOverrides = make(map[string]string, len(base.StepNarrativeOverrides)+len(override.StepNarrativeOverrides))
		for id, text := range base.StepNarrativeOverrides {
			merged.StepNarrativeOverrides[id] = text
		}
		for id, text := range override.StepNarrativeOverrides {
			merged.StepNarrativeOverrides[id] = text
		}
	}

	return merged
}

// apply builds the effective lab from the base lab and a merged overlay.
// A filter that would remove every step fails open: the full step list is
// kept and an authoring warning is attached instead of rendering nothing.
func apply(lab *models.Lab, ov *models.Overlay) *models.EffectiveLab {
	effective := &models.EffectiveLab{
		ID:          lab.ID,
		Title:       lab.Title,
		Description: lab.Description,
		Difficulty:  lab.Difficulty,
	}

	steps := lab.Steps
	if ov != nil {
		if ov.TitleOverride != "" {
			effective.Title = ov.TitleOverride
		}
		if ov.DescriptionOverride != "" {
			effective.Description = ov.DescriptionOverride
		}
		effective.IntroNarrative = ov.IntroNarrative
		effective.OutroNarrative = ov.OutroNarrative

		if ov.StepFilter != nil {
			filtered := filterSteps(lab.Steps, ov.StepFilter)
			if len(filtered) == 0 {
				warning := "step filter removed every step of lab " + lab.ID + "; keeping unfiltered step list"
				effective.Warnings = append(effective.Warnings, warning)
				slog.Warn("overlay step filter removed all steps", "lab_id", lab.ID)
			} else {
				steps = filtered
			}
		}
	}

	effective.Steps = make([]models.Step, len(steps))
	for i, step := range steps {
		s := step
		if ov != nil {
			if narrative, ok := ov.StepNarrativeOverrides[step.ID]; ok {
				s.Narrative = narrative
			}
		}
		effective.Steps[i] = s
	}

	return effective
}

func filterSteps(steps []models.Step, filter *models.StepFilter) []models.Step {
	include := make(map[string]bool, len(filter.StepIDs))
	for _, id := range filter.StepIDs {
		include[id] = true
	}
	exclude := make(map[string]bool, len(filter.ExcludeStepIDs))
	for _, id := range filter.ExcludeStepIDs {
		exclude[id] = true
	}

	var out []models.Step
	for _, step := range steps {
		if len(include) > 0 && !include[step.ID] {
			continue
		}
		if exclude[step.ID] {
			continue
		}
		out = append(out, step)
	}
	return out
}

func overlayFor(overlays []models.Overlay, labID string) *models.Overlay {
	for i := range overlays {
		if overlays[i].LabID == labID {
			return &overlays[i]
		}
	}
	return nil
}

func pick(override, base string) string {
	if override != "" {
		return override
	}
	return base
}
