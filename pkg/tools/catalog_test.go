package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCatalog_MissingFileUsesDefaults(t *testing.T) {
	c, err := LoadCatalog(filepath.Join(t.TempDir(), "protocols.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"entertainment", "focus", "security", "work mode"}, c.ProtocolNames())

	steps, ok := c.Protocol("Work Mode")
	require.True(t, ok)
	assert.Equal(t, []string{"url:https://github.com", "app:code", "app:calculator"}, steps)
}

func TestLoadCatalog_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "protocols.yaml")
	raw := `
apps:
  Terminal: alacritty
protocols:
  night shift:
    - app:terminal
    - "  "
    - url:https://news.ycombinator.com
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"night shift"}, c.ProtocolNames())

	cmd, ok := c.App("terminal")
	require.True(t, ok)
	assert.Equal(t, "alacritty", cmd)
	_, ok = c.App("calculator")
	assert.True(t, ok, "default apps survive a file that only adds apps")

	steps, _ := c.Protocol("night shift")
	assert.Equal(t, []string{"app:terminal", "url:https://news.ycombinator.com"}, steps)
}

func TestLoadCatalog_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "protocols.yaml")
	require.NoError(t, os.WriteFile(path, []byte("protocols: [unclosed"), 0o644))
	_, err := LoadCatalog(path)
	assert.Error(t, err)
}

func TestCatalog_SetAndDeleteProtocolPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "protocols.yaml")
	c := NewCatalog(path)

	require.NoError(t, c.SetProtocol("  Deep   Work ", []string{"app:code", ""}))
	assert.Error(t, c.SetProtocol("", []string{"app:code"}))
	assert.Error(t, c.SetProtocol("empty", nil))

	reloaded, err := LoadCatalog(path)
	require.NoError(t, err)
	steps, ok := reloaded.Protocol("deep work")
	require.True(t, ok)
	assert.Equal(t, []string{"app:code"}, steps)

	found, err := reloaded.DeleteProtocol("DEEP WORK")
	require.NoError(t, err)
	assert.True(t, found)
	found, err = reloaded.DeleteProtocol("deep work")
	require.NoError(t, err)
	assert.False(t, found)

	again, err := LoadCatalog(path)
	require.NoError(t, err)
	_, ok = again.Protocol("deep work")
	assert.False(t, ok)
}

func TestCatalog_RunStep(t *testing.T) {
	c := NewCatalog("")
	launcher := &recordingLauncher{}
	ctx := context.Background()

	require.NoError(t, c.runStep(ctx, launcher, "url:https://example.com"))
	require.NoError(t, c.runStep(ctx, launcher, "app:code"))
	require.NoError(t, c.runStep(ctx, launcher, "app:unknown-thing"))
	require.NoError(t, c.runStep(ctx, launcher, "echo hi"))

	assert.Equal(t, []launchCall{
		{Op: "open", Target: "https://example.com"},
		{Op: "run", Target: "code"},
		{Op: "run", Target: "unknown-thing"},
		{Op: "run", Target: "echo hi"},
	}, launcher.Calls())
}
