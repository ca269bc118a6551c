// Package catalog loads the read-only workshop content catalog (labs,
// quests, templates, flags) from YAML files. The engine only ever reads
// from it; authoring happens out of band.
package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/quest-forge/quest-engine/internal/models"
)

const defaultStepPoints = 10

// Loader manages loading and caching of catalog entities.
type Loader struct {
	mu        sync.RWMutex
	labs      map[string]*models.Lab
	quests    map[string]*models.Quest
	templates map[string]*models.Template
	flags     map[string]*models.Flag
}

// NewLoader creates an empty loader.
func NewLoader() *Loader {
	return &Loader{
		labs:      make(map[string]*models.Lab),
		quests:    make(map[string]*models.Quest),
		templates: make(map[string]*models.Template),
		flags:     make(map[string]*models.Flag),
	}
}

// LoadFromDir loads all catalog YAML from the expected subdirectories
// (labs/, quests/, templates/, flags/). Malformed files are logged and
// skipped; an absent subdirectory just loads nothing. Authoring mistakes
// must never take the workshop down.
func (l *Loader) LoadFromDir(dir string) error {
	slog.Info("loading catalog from directory", "dir", dir)

	loaded := 0
	loaded += l.loadKind(filepath.Join(dir, "labs"), l.loadLabFile)
	loaded += l.loadKind(filepath.Join(dir, "quests"), l.loadQuestFile)
	loaded += l.loadKind(filepath.Join(dir, "templates"), l.loadTemplateFile)
	loaded += l.loadKind(filepath.Join(dir, "flags"), l.loadFlagFile)

	slog.Info("catalog loaded",
		"files", loaded,
		"labs", len(l.labs),
		"quests", len(l.quests),
		"templates", len(l.templates),
		"flags", len(l.flags),
	)
	return nil
}

func (l *Loader) loadKind(dir string, load func(path string) error) int {
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			continue
		}
		files = append(files, matches...)
	}

	loaded := 0
	for _, file := range files {
		if err := load(file); err != nil {
			slog.Warn("failed to load catalog file", "file", file, "error", err)
			continue
		}
		loaded++
	}
	return loaded
}

func (l *Loader) loadLabFile(path string) error {
	var lab models.Lab
	if err := readYAML(path, &lab); err != nil {
		return err
	}
	if lab.ID == "" {
		return fmt.Errorf("lab id is required")
	}
	if len(lab.Steps) == 0 {
		return fmt.Errorf("lab %s has no steps", lab.ID)
	}
	for i := range lab.Steps {
		if lab.Steps[i].ID == "" {
			return fmt.Errorf("lab %s step %d has no id", lab.ID, i)
		}
		if lab.Steps[i].BasePoints <= 0 {
			lab.Steps[i].BasePoints = defaultStepPoints
		}
	}

	l.mu.Lock()
	l.labs[lab.ID] = &lab
	l.mu.Unlock()
	return nil
}

func (l *Loader) loadQuestFile(path string) error {
	var quest models.Quest
	if err := readYAML(path, &quest); err != nil {
		return err
	}
	if quest.ID == "" {
		return fmt.Errorf("quest id is required")
	}

	l.mu.Lock()
	l.quests[quest.ID] = &quest
	l.mu.Unlock()
	return nil
}

func (l *Loader) loadTemplateFile(path string) error {
	var template models.Template
	if err := readYAML(path, &template); err != nil {
		return err
	}
	if template.ID == "" {
		return fmt.Errorf("template id is required")
	}

	l.mu.Lock()
	l.templates[template.ID] = &template
	l.mu.Unlock()
	return nil
}

func (l *Loader) loadFlagFile(path string) error {
	var flag models.Flag
	if err := readYAML(path, &flag); err != nil {
		return err
	}
	if flag.ID == "" {
		return fmt.Errorf("flag id is required")
	}

	l.mu.Lock()
	l.flags[flag.ID] = &flag
	l.mu.Unlock()
	return nil
}

// Lab returns a lab by ID, or nil.
func (l *Loader) Lab(id string) *models.Lab {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.labs[id]
}

// Quest returns a quest by ID, or nil.
func (l *Loader) Quest(id string) *models.Quest {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.quests[id]
}

// Template returns a template by ID, or nil.
func (l *Loader) Template(id string) *models.Template {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.templates[id]
}

// Flag returns a flag by ID, or nil.
func (l *Loader) Flag(id string) *models.Flag {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.flags[id]
}

// Labs returns all labs sorted by ID.
func (l *Loader) Labs() []*models.Lab {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*models.Lab, 0, len(l.labs))
	for _, lab := range l.labs {
		out = append(out, lab)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Quests returns all quests sorted by ID.
func (l *Loader) Quests() []*models.Quest {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*models.Quest, 0, len(l.quests))
	for _, q := range l.quests {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Templates returns all templates sorted by ID.
func (l *Loader) Templates() []*models.Template {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*models.Template, 0, len(l.templates))
	for _, t := range l.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func readYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}
