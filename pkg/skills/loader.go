package skills

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/dotsetgreg/dotvoice/pkg/logger"
	"github.com/dotsetgreg/dotvoice/pkg/tools"
)

// Loader discovers skills under an ordered list of roots. When two roots
// provide the same name, the earlier root wins.
type Loader struct {
	roots []string
}

// NewLoader takes roots in precedence order, user root first.
func NewLoader(roots ...string) *Loader {
	kept := make([]string, 0, len(roots))
	for _, r := range roots {
		if r != "" {
			kept = append(kept, r)
		}
	}
	return &Loader{roots: kept}
}

func (l *Loader) Roots() []string {
	return append([]string(nil), l.roots...)
}

// Load returns the skills sorted by name plus one error per directory that
// could not be loaded. Disabled skills are skipped silently.
func (l *Loader) Load() ([]*Skill, []error) {
	byName := map[string]*Skill{}
	var errs []error

	for _, root := range l.roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			if !os.IsNotExist(err) {
				errs = append(errs, fmt.Errorf("read skills root %s: %w", root, err))
			}
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			dir := filepath.Join(root, entry.Name())
			if _, err := os.Stat(filepath.Join(dir, ManifestFile)); err != nil {
				continue
			}
			m, err := readManifest(dir)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if !m.enabled() {
				continue
			}
			if _, taken := byName[m.Name]; taken {
				continue
			}
			skill, err := newSkill(dir, root, m)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", dir, err))
				continue
			}
			byName[m.Name] = skill
		}
	}

	out := make([]*Skill, 0, len(byName))
	for _, s := range byName {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, errs
}

// Reload loads skills into registry and returns how many were merged.
func (l *Loader) Reload(registry *tools.ToolRegistry) int {
	skills, errs := l.Load()
	for _, err := range errs {
		logger.WarnCF("skills", "Skill failed to load", map[string]interface{}{
			"error": err.Error(),
		})
	}
	asTools := make([]tools.Tool, 0, len(skills))
	for _, s := range skills {
		asTools = append(asTools, s)
	}
	shadowed := registry.MergeSkills(asTools)
	merged := len(asTools) - len(shadowed)
	logger.InfoCF("skills", "Skills loaded", map[string]interface{}{
		"loaded":   merged,
		"shadowed": len(shadowed),
		"errors":   len(errs),
	})
	return merged
}
