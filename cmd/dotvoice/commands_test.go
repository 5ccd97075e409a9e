package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotsetgreg/dotvoice/pkg/agent"
	"github.com/dotsetgreg/dotvoice/pkg/config"
	"github.com/dotsetgreg/dotvoice/pkg/providers"
	"github.com/dotsetgreg/dotvoice/pkg/voice"
)

// useTempHome points the CLI at a fresh config path and data dir.
func useTempHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", filepath.Join(dir, "home"))
	t.Setenv("DOTVOICE_CONFIG", filepath.Join(dir, "config.json"))
	t.Setenv("DOTVOICE_DATA_DIR", filepath.Join(dir, "data"))
	return dir
}

type scriptedPrompter struct {
	answer string
	err    error
	asked  []string
}

func (p *scriptedPrompter) Listen(context.Context) (string, error) { return p.answer, p.err }

func (p *scriptedPrompter) Speak(_ context.Context, text string) error {
	p.asked = append(p.asked, text)
	return nil
}

func (p *scriptedPrompter) SetVoice(string) {}

func TestIsAffirmative(t *testing.T) {
	for _, answer := range []string{"yes", "Yes.", " y ", "okay!", "do it", "Go ahead"} {
		assert.True(t, isAffirmative(answer), answer)
	}
	for _, answer := range []string{"", "no", "none", "yes please not", "maybe"} {
		assert.False(t, isAffirmative(answer), answer)
	}
}

func TestConfirmFunc_Policies(t *testing.T) {
	ctx := context.Background()

	assert.Nil(t, confirmFunc("allow", nil), "allow needs no hook")

	deny := confirmFunc("deny", &scriptedPrompter{answer: "yes"})
	require.NotNil(t, deny)
	assert.False(t, deny(ctx, "open_application", "calculator"))

	noPrompter := confirmFunc("ask", nil)
	require.NotNil(t, noPrompter)
	assert.False(t, noPrompter(ctx, "open_application", "calculator"))

	p := &scriptedPrompter{answer: "yes"}
	ask := confirmFunc("ASK", p)
	assert.True(t, ask(ctx, "initiate_protocol", "work mode"))
	require.Len(t, p.asked, 1)
	assert.Equal(t, "Confirm initiate_protocol: work mode? Say yes or no.", p.asked[0])

	p.answer = "no"
	assert.False(t, ask(ctx, "initiate_protocol", "work mode"))

	p.err = errors.New("mic unplugged")
	p.answer = "yes"
	assert.False(t, ask(ctx, "initiate_protocol", "work mode"))

	unknown := confirmFunc("sometimes", &scriptedPrompter{answer: "sure"})
	assert.True(t, unknown(ctx, "clear_notes", ""))
}

func TestOnboard_WritesDefaultsAndRespectsExisting(t *testing.T) {
	dir := useTempHome(t)

	out, err := runRootCommandForTest("onboard")
	require.NoError(t, err)
	assert.Contains(t, out, "dotvoice is ready!")

	cfg, err := config.LoadConfig(filepath.Join(dir, "config.json"))
	require.NoError(t, err)
	assert.Equal(t, "ask", cfg.Tools.ConfirmPolicy)
	assert.FileExists(t, filepath.Join(dir, "data", "protocols.yaml"))
	assert.DirExists(t, filepath.Join(dir, "data", "skills"))
	assert.NoDirExists(t, filepath.Join(dir, "home", ".dotvoice"), "onboard honours DOTVOICE_DATA_DIR")

	root := buildRootCommand(false)
	var buf strings.Builder
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetIn(strings.NewReader("n\n"))
	root.SetArgs([]string{"onboard"})
	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "Aborted.")
}

func TestRemindersCommands(t *testing.T) {
	useTempHome(t)

	out, err := runRootCommandForTest("reminders", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No reminders scheduled.")

	out, err = runRootCommandForTest("reminders", "add", "in 2 hours", "water", "the", "plants")
	require.NoError(t, err)
	require.Contains(t, out, "Reminder set for ")
	id := out[strings.Index(out, "(id: ")+5 : strings.Index(out, ").")]

	out, err = runRootCommandForTest("reminders", "list")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "water the plants")

	_, err = runRootCommandForTest("reminders", "add", "whenever", "x")
	assert.Error(t, err)

	out, err = runRootCommandForTest("reminders", "cancel", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Reminder "+id+" canceled.")

	_, err = runRootCommandForTest("reminders", "cancel", id)
	assert.Error(t, err)
}

func TestNotesCommands(t *testing.T) {
	useTempHome(t)

	out, err := runRootCommandForTest("notes", "add", "buy", "coffee")
	require.NoError(t, err)
	require.Contains(t, out, "Note saved (id: ")
	id := out[strings.Index(out, "(id: ")+5 : strings.Index(out, ").")]

	out, err = runRootCommandForTest("notes", "list")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "buy coffee")

	_, err = runRootCommandForTest("notes", "delete", id)
	require.NoError(t, err)
	_, err = runRootCommandForTest("notes", "delete", id)
	assert.Error(t, err)

	out, err = runRootCommandForTest("notes", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No notes saved.")
}

func TestAuditAndHistoryStartEmpty(t *testing.T) {
	useTempHome(t)

	out, err := runRootCommandForTest("audit", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Action log is empty.")

	out, err = runRootCommandForTest("history", "list", "--source", "voice")
	require.NoError(t, err)
	assert.Contains(t, out, "No commands recorded.")

	out, err = runRootCommandForTest("history", "list", "--session")
	require.NoError(t, err)
	assert.Contains(t, out, "Session log is empty.")

	out, err = runRootCommandForTest("history", "clear", "--session")
	require.NoError(t, err)
	assert.Contains(t, out, "History cleared.")
}

func TestProtocolsCommands(t *testing.T) {
	dir := useTempHome(t)

	out, err := runRootCommandForTest("protocols", "set", "Morning", "url:https://news.example.com", "app:calculator")
	require.NoError(t, err)
	assert.Contains(t, out, "Protocol Morning saved with 2 steps.")
	assert.FileExists(t, filepath.Join(dir, "data", "protocols.yaml"))

	out, err = runRootCommandForTest("protocols", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "morning: url:https://news.example.com -> app:calculator")
	assert.Contains(t, out, "work mode:")

	_, err = runRootCommandForTest("protocols", "delete", "morning")
	require.NoError(t, err)
	_, err = runRootCommandForTest("protocols", "delete", "morning")
	assert.Error(t, err)
}

func TestProtocolsRefusesCorruptBook(t *testing.T) {
	dir := useTempHome(t)
	path := filepath.Join(dir, "data", "protocols.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("protocols: [unterminated"), 0o644))

	_, err := runRootCommandForTest("protocols", "set", "x", "app:code")
	assert.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "protocols: [unterminated", string(data))
}

func TestProfileCommands(t *testing.T) {
	useTempHome(t)

	out, err := runRootCommandForTest("profile", "name", "Ada")
	require.NoError(t, err)
	assert.Contains(t, out, "User: Ada")

	out, err = runRootCommandForTest("profile", "wake-words", "Hey Computer", "jarvis")
	require.NoError(t, err)
	assert.Contains(t, out, "Wake words: hey computer, jarvis")

	out, err = runRootCommandForTest("profile", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "User: Ada")
	assert.Contains(t, out, "hey computer")
}

func TestStatusReportsBalance(t *testing.T) {
	useTempHome(t)

	out, err := runRootCommandForTest("status")
	require.NoError(t, err)
	assert.Contains(t, out, "Balance: $5.0000")
	assert.Contains(t, out, "Reminders: 0 pending")
	assert.Contains(t, out, "Model API key: not set")
}

func TestGatewayRequiresToken(t *testing.T) {
	useTempHome(t)

	_, err := runRootCommandForTest("gateway")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channels.discord.token is required")
}

func TestSkillsListEmpty(t *testing.T) {
	useTempHome(t)

	out, err := runRootCommandForTest("skills", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No skills installed.")
}

func TestDocsReferences(t *testing.T) {
	ref, err := buildConfigReferenceMarkdown()
	require.NoError(t, err)
	assert.Contains(t, ref, "`tools.confirm_policy`")
	assert.Contains(t, ref, "`DOTVOICE_LISTENER_LISTEN_MS`")

	toolsRef, err := buildToolsReferenceMarkdown()
	require.NoError(t, err)
	assert.Contains(t, toolsRef, "| `open_application` | yes |")
	assert.Contains(t, toolsRef, "| `web_search` | no |")
	assert.Contains(t, toolsRef, "`add_reminder`")
	assert.Contains(t, toolsRef, "`clear_notes`")
}

type fakeProvider struct{ reply string }

func (p fakeProvider) Chat(context.Context, []providers.Message, []providers.ToolDefinition, string, map[string]interface{}) (*providers.LLMResponse, error) {
	return &providers.LLMResponse{Content: p.reply}, nil
}

func (fakeProvider) GetDefaultModel() string { return "test-model" }

type sliceReader struct {
	lines []string
}

func (r *sliceReader) Readline() (string, error) {
	if len(r.lines) == 0 {
		return "", io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

func (r *sliceReader) Close() error { return nil }

func TestChatLoopAnswersUntilTermination(t *testing.T) {
	var out bytes.Buffer
	console := voice.NewConsoleFrom(&sliceReader{lines: []string{"hello", "go to sleep", "never read"}}, &out, 0)
	defer console.Close()

	orch := agent.New(agent.Deps{Provider: fakeProvider{reply: "Hi there."}}, agent.Options{StartingBalance: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, chatLoop(ctx, &out, console, orch))
	assert.Contains(t, out.String(), "[assistant] Hi there.")
	assert.Contains(t, out.String(), "[assistant] Understood. Returning to standby.")
}

func TestChatLoopExitsOnQuit(t *testing.T) {
	var out bytes.Buffer
	console := voice.NewConsoleFrom(&sliceReader{lines: []string{"quit"}}, &out, 0)
	defer console.Close()

	orch := agent.New(agent.Deps{Provider: fakeProvider{reply: "unused"}}, agent.Options{StartingBalance: 1})
	require.NoError(t, chatLoop(context.Background(), &out, console, orch))
	assert.Contains(t, out.String(), "Goodbye!")
}
