package skills

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	ManifestFile       = "skill.json"
	defaultDescription = "Custom skill"
	defaultTimeout     = 30
)

var unsafeNameChars = regexp.MustCompile(`[^a-z0-9_]`)

// Manifest is the skill.json document found in each skill directory.
type Manifest struct {
	Name           string                 `json:"name"`
	Description    string                 `json:"description"`
	Parameters     map[string]interface{} `json:"parameters"`
	Entrypoint     string                 `json:"entrypoint"`
	Enabled        *bool                  `json:"enabled,omitempty"`
	TimeoutSeconds int                    `json:"timeout_seconds,omitempty"`
}

// SanitizeName lowercases name and replaces every character outside
// [a-z0-9_] with an underscore.
func SanitizeName(name string) string {
	return unsafeNameChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_")
}

func (m Manifest) enabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// readManifest loads dir/skill.json and fills defaults. The directory name
// stands in for a missing name.
func readManifest(dir string) (Manifest, error) {
	path := filepath.Join(dir, ManifestFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("%s: %w", path, err)
	}

	if strings.TrimSpace(m.Name) == "" {
		m.Name = filepath.Base(dir)
	}
	m.Name = SanitizeName(m.Name)
	if strings.Trim(m.Name, "_") == "" {
		return Manifest{}, fmt.Errorf("%s: invalid skill name", path)
	}
	if strings.TrimSpace(m.Description) == "" {
		m.Description = defaultDescription
	}
	if m.Parameters == nil {
		m.Parameters = map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
	}
	if m.TimeoutSeconds <= 0 {
		m.TimeoutSeconds = defaultTimeout
	}
	m.Entrypoint = strings.TrimSpace(m.Entrypoint)
	if m.Entrypoint == "" {
		return Manifest{}, fmt.Errorf("%s: entrypoint is required", path)
	}
	if filepath.IsAbs(m.Entrypoint) || strings.HasPrefix(filepath.Clean(m.Entrypoint), "..") {
		return Manifest{}, fmt.Errorf("%s: entrypoint must stay inside the skill directory", path)
	}
	if _, err := os.Stat(filepath.Join(dir, m.Entrypoint)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Manifest{}, fmt.Errorf("%s: missing entrypoint %q", path, m.Entrypoint)
		}
		return Manifest{}, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}
