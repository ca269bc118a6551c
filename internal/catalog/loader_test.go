package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCatalogFile(t *testing.T, dir, kind, name, content string) {
	t.Helper()
	kindDir := filepath.Join(dir, kind)
	require.NoError(t, os.MkdirAll(kindDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(kindDir, name), []byte(content), 0o644))
}

func TestLoadFromDir(t *testing.T) {
	dir := t.TempDir()

	writeCatalogFile(t, dir, "labs", "lab-csfle.yaml", `
id: lab-csfle-basics
title: CSFLE Basics
difficulty: intermediate
steps:
  - id: s1
    title: Create a data key
    narrative: Create a DEK.
    base_points: 10
    verification_id: verify-dek
    hints:
      - Look at CreateDataKey.
  - id: s2
    title: Encrypt a field
    narrative: Encrypt the ssn field.
    verification_id: verify-encrypt
`)

	writeCatalogFile(t, dir, "quests", "stop-the-leak.yaml", `
id: quest-stop-the-leak
title: Stop the Leak
story_context: Customer records are leaking.
lab_ids:
  - lab-csfle-basics
required_flag_ids:
  - flag-dek-created
overlays:
  - lab_id: lab-csfle-basics
    step_narrative_overrides:
      s1: The leak started with an unencrypted key.
    step_filter:
      exclude_step_ids:
        - s2
`)

	writeCatalogFile(t, dir, "templates", "retail.yaml", `
id: tpl-retail
name: Retail Encryption Quickstart
lab_ids:
  - lab-csfle-basics
quest_ids:
  - quest-stop-the-leak
gamification:
  enabled: true
  base_points_per_step: 10
  bonus_points_per_flag: 25
  bonus_points_per_quest: 50
`)

	writeCatalogFile(t, dir, "flags", "dek-created.yaml", `
id: flag-dek-created
name: First DEK
verification_id: verify-dek
points: 25
`)

	loader := NewLoader()
	require.NoError(t, loader.LoadFromDir(dir))

	lab := loader.Lab("lab-csfle-basics")
	require.NotNil(t, lab)
	assert.Equal(t, "CSFLE Basics", lab.Title)
	require.Len(t, lab.Steps, 2)
	assert.Equal(t, 10, lab.Steps[0].BasePoints)
	assert.Equal(t, 10, lab.Steps[1].BasePoints, "missing base_points defaults")

	quest := loader.Quest("quest-stop-the-leak")
	require.NotNil(t, quest)
	require.Len(t, quest.Overlays, 1)
	assert.Equal(t, "The leak started with an unencrypted key.", quest.Overlays[0].StepNarrativeOverrides["s1"])
	require.NotNil(t, quest.Overlays[0].StepFilter)
	assert.Equal(t, []string{"s2"}, quest.Overlays[0].StepFilter.ExcludeStepIDs)

	template := loader.Template("tpl-retail")
	require.NotNil(t, template)
	assert.True(t, template.Gamification.Enabled)
	assert.Equal(t, 50, template.Gamification.BonusPointsPerQuest)

	flag := loader.Flag("flag-dek-created")
	require.NotNil(t, flag)
	assert.Equal(t, 25, flag.Points)

	assert.Len(t, loader.Labs(), 1)
	assert.Len(t, loader.Quests(), 1)
	assert.Len(t, loader.Templates(), 1)
}

func TestLoadSkipsMalformedFiles(t *testing.T) {
	dir := t.TempDir()

	writeCatalogFile(t, dir, "labs", "broken.yaml", `{not yaml at all`)
	writeCatalogFile(t, dir, "labs", "no-id.yaml", `
title: Missing ID
steps:
  - id: s1
    title: Step
`)
	writeCatalogFile(t, dir, "labs", "good.yaml", `
id: lab-good
title: Good Lab
steps:
  - id: s1
    title: Step
`)

	loader := NewLoader()
	require.NoError(t, loader.LoadFromDir(dir), "authoring mistakes must not be fatal")

	assert.Len(t, loader.Labs(), 1)
	assert.NotNil(t, loader.Lab("lab-good"))
}

func TestLoadMissingDir(t *testing.T) {
	loader := NewLoader()
	require.NoError(t, loader.LoadFromDir(filepath.Join(t.TempDir(), "nope")))
	assert.Empty(t, loader.Labs())
}
