package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Protocol steps are either "app:<name>" (resolved through the app table),
// "url:<target>" (opened with the system opener) or a raw shell command.
const (
	stepApp = "app:"
	stepURL = "url:"
)

type catalogFile struct {
	Apps      map[string]string   `yaml:"apps"`
	Protocols map[string][]string `yaml:"protocols"`
}

// Catalog is the editable table of launchable applications and named
// multi-step protocols, persisted as YAML.
type Catalog struct {
	path string

	mu        sync.RWMutex
	apps      map[string]string
	protocols map[string][]string
}

func defaultApps() map[string]string {
	switch runtime.GOOS {
	case "windows":
		return map[string]string{
			"browser":    "start chrome",
			"notepad":    "notepad",
			"calculator": "calc",
			"code":       "code",
		}
	case "darwin":
		return map[string]string{
			"browser":    "open -a Safari",
			"notepad":    "open -a TextEdit",
			"calculator": "open -a Calculator",
			"code":       "code",
		}
	default:
		return map[string]string{
			"browser":    "xdg-open https://",
			"notepad":    "gedit",
			"calculator": "gnome-calculator",
			"code":       "code",
		}
	}
}

func defaultProtocols() map[string][]string {
	return map[string][]string{
		"work mode":     {"url:https://github.com", "app:code", "app:calculator"},
		"entertainment": {"url:https://youtube.com", "app:calculator"},
		"security":      {"app:calculator"},
		"focus":         {"app:calculator"},
	}
}

func NewCatalog(path string) *Catalog {
	return &Catalog{
		path:      path,
		apps:      defaultApps(),
		protocols: defaultProtocols(),
	}
}

// LoadCatalog reads path over the defaults. A missing file yields defaults.
func LoadCatalog(path string) (*Catalog, error) {
	c := NewCatalog(path)
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return c, fmt.Errorf("read catalog: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return c, fmt.Errorf("decode catalog %s: %w", path, err)
	}
	for name, cmd := range file.Apps {
		if key := catalogKey(name); key != "" && strings.TrimSpace(cmd) != "" {
			c.apps[key] = strings.TrimSpace(cmd)
		}
	}
	if file.Protocols != nil {
		c.protocols = make(map[string][]string, len(file.Protocols))
		for name, steps := range file.Protocols {
			if key := catalogKey(name); key != "" {
				c.protocols[key] = cleanSteps(steps)
			}
		}
	}
	return c, nil
}

func catalogKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func cleanSteps(steps []string) []string {
	out := make([]string, 0, len(steps))
	for _, s := range steps {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c *Catalog) Path() string {
	return c.path
}

func (c *Catalog) App(name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cmd, ok := c.apps[catalogKey(name)]
	return cmd, ok
}

func (c *Catalog) Apps() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.apps))
	for k, v := range c.apps {
		out[k] = v
	}
	return out
}

func (c *Catalog) Protocol(name string) ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	steps, ok := c.protocols[catalogKey(name)]
	if !ok || len(steps) == 0 {
		return nil, false
	}
	return append([]string(nil), steps...), true
}

// ProtocolNames returns the sorted protocol names.
func (c *Catalog) ProtocolNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.protocols))
	for name := range c.protocols {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetProtocol creates or replaces a protocol and persists the catalog.
func (c *Catalog) SetProtocol(name string, steps []string) error {
	key := catalogKey(name)
	if key == "" {
		return errors.New("protocol name is required")
	}
	steps = cleanSteps(steps)
	if len(steps) == 0 {
		return errors.New("protocol needs at least one step")
	}
	c.mu.Lock()
	c.protocols[key] = steps
	c.mu.Unlock()
	return c.Save()
}

// DeleteProtocol reports whether the protocol existed.
func (c *Catalog) DeleteProtocol(name string) (bool, error) {
	key := catalogKey(name)
	c.mu.Lock()
	_, ok := c.protocols[key]
	delete(c.protocols, key)
	c.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, c.Save()
}

func (c *Catalog) Save() error {
	if c.path == "" {
		return nil
	}
	c.mu.RLock()
	data, err := yaml.Marshal(catalogFile{Apps: c.apps, Protocols: c.protocols})
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create catalog dir: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace catalog: %w", err)
	}
	return nil
}

// runStep executes one protocol step through launcher.
func (c *Catalog) runStep(ctx context.Context, launcher Launcher, step string) error {
	switch {
	case strings.HasPrefix(step, stepURL):
		return launcher.Open(ctx, strings.TrimSpace(strings.TrimPrefix(step, stepURL)))
	case strings.HasPrefix(step, stepApp):
		app := strings.TrimSpace(strings.TrimPrefix(step, stepApp))
		cmd, ok := c.App(app)
		if !ok {
			cmd = app
		}
		return launcher.Run(ctx, cmd)
	default:
		return launcher.Run(ctx, step)
	}
}
