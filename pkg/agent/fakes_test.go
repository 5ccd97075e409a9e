package agent

import (
	"context"
	"sync"

	"github.com/dotsetgreg/dotvoice/pkg/journal"
	"github.com/dotsetgreg/dotvoice/pkg/providers"
	"github.com/dotsetgreg/dotvoice/pkg/tools"
	"github.com/dotsetgreg/dotvoice/pkg/voice"
)

type providerStep struct {
	resp *providers.LLMResponse
	err  error
}

type providerCall struct {
	messages  []providers.Message
	toolCount int
}

// scriptedProvider replays steps in order and answers "ok" once they run out.
type scriptedProvider struct {
	mu    sync.Mutex
	steps []providerStep
	calls []providerCall
}

func (p *scriptedProvider) Chat(_ context.Context, messages []providers.Message, defs []providers.ToolDefinition, _ string, _ map[string]interface{}) (*providers.LLMResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, providerCall{messages: append([]providers.Message(nil), messages...), toolCount: len(defs)})
	if len(p.steps) == 0 {
		return &providers.LLMResponse{Content: "ok"}, nil
	}
	step := p.steps[0]
	p.steps = p.steps[1:]
	return step.resp, step.err
}

func (p *scriptedProvider) GetDefaultModel() string { return "test-model" }

func (p *scriptedProvider) Calls() []providerCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]providerCall(nil), p.calls...)
}

func textStep(content string, in, out int) providerStep {
	return providerStep{resp: &providers.LLMResponse{
		Content: content,
		Usage:   &providers.UsageInfo{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out},
	}}
}

func toolStep(in, out int, calls ...providers.ToolCall) providerStep {
	return providerStep{resp: &providers.LLMResponse{
		ToolCalls: calls,
		Usage:     &providers.UsageInfo{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out},
	}}
}

func call(id, name string, args map[string]interface{}) providers.ToolCall {
	return providers.ToolCall{ID: id, Type: "function", Name: name, Arguments: args}
}

// scriptedListener hands out lines, then reports the device as gone.
type scriptedListener struct {
	mu    sync.Mutex
	lines []string
	calls int
}

func (l *scriptedListener) Listen(ctx context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(l.lines) == 0 {
		return "", voice.ErrDeviceUnavailable
	}
	line := l.lines[0]
	l.lines = l.lines[1:]
	return line, nil
}

func (l *scriptedListener) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

type recordingSpeaker struct {
	mu     sync.Mutex
	spoken []string
	voice  string
}

func (s *recordingSpeaker) Speak(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = append(s.spoken, text)
	return nil
}

func (s *recordingSpeaker) SetVoice(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voice = v
}

func (s *recordingSpeaker) Spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoken...)
}

func (s *recordingSpeaker) Voice() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voice
}

type memJournal struct {
	mu      sync.Mutex
	history []journal.HistoryEntry
	session []journal.SessionLogEntry
	usage   []journal.UsageRecord
}

func (j *memJournal) AppendHistory(_ context.Context, text, source string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.history = append(j.history, journal.HistoryEntry{Text: text, Source: source})
	return nil
}

func (j *memJournal) AppendSessionLog(_ context.Context, kind, message string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.session = append(j.session, journal.SessionLogEntry{Kind: kind, Message: message})
	return nil
}

func (j *memJournal) RecordUsage(_ context.Context, rec journal.UsageRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.usage = append(j.usage, rec)
	return nil
}

type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "Echo the text argument." }
func (echoTool) Parameters() map[string]interface{} {
	return map[string]interface{}{"type": "object", "properties": map[string]interface{}{"text": map[string]interface{}{"type": "string"}}}
}
func (echoTool) Execute(_ context.Context, args map[string]interface{}) *tools.ToolResult {
	text, _ := args["text"].(string)
	return tools.NewToolResult("echo: " + text)
}
