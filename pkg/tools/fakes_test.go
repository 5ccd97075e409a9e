package tools

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dotsetgreg/dotvoice/pkg/journal"
)

type launchCall struct {
	Op     string
	Target string
}

type recordingLauncher struct {
	mu    sync.Mutex
	calls []launchCall
	fail  error
}

func (l *recordingLauncher) Open(_ context.Context, target string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, launchCall{Op: "open", Target: target})
	return l.fail
}

func (l *recordingLauncher) Run(_ context.Context, command string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, launchCall{Op: "run", Target: command})
	return l.fail
}

func (l *recordingLauncher) Calls() []launchCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]launchCall(nil), l.calls...)
}

type memoryAudit struct {
	mu      sync.Mutex
	records []journal.AuditRecord
	fail    bool
}

func (a *memoryAudit) AppendAudit(_ context.Context, rec journal.AuditRecord) error {
	if a.fail {
		return errors.New("audit store offline")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, rec)
	return nil
}

func (a *memoryAudit) Statuses() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.records))
	for _, r := range a.records {
		out = append(out, r.Status)
	}
	return out
}

type memoryNotes struct {
	notes []journal.Note
	next  int
}

func (m *memoryNotes) AddNote(_ context.Context, text string) (journal.Note, error) {
	m.next++
	n := journal.Note{
		ID:        string(rune('a'+m.next-1)) + "0000000",
		Text:      text,
		CreatedAt: time.Date(2026, 5, 10, 9, m.next, 0, 0, time.UTC),
	}
	m.notes = append(m.notes, n)
	return n, nil
}

func (m *memoryNotes) ListNotes(context.Context) ([]journal.Note, error) {
	return append([]journal.Note(nil), m.notes...), nil
}

func (m *memoryNotes) DeleteNote(_ context.Context, id string) (bool, error) {
	for i, n := range m.notes {
		if n.ID == id {
			m.notes = append(m.notes[:i], m.notes[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryNotes) ClearNotes(context.Context) error {
	m.notes = nil
	return nil
}

type stubReminders struct {
	added [][2]string
}

func (s *stubReminders) AddText(message, when string) string {
	s.added = append(s.added, [2]string{message, when})
	return "Reminder set for 2026-05-10 15:30 (id: abcd1234)."
}
func (s *stubReminders) ListText() string            { return "No reminders scheduled." }
func (s *stubReminders) CancelText(id string) string { return "Reminder " + id + " canceled." }
func (s *stubReminders) ClearText() string           { return "All reminders cleared." }

type stubTool struct {
	name    string
	result  *ToolResult
	panics  bool
	calls   int
	lastArg map[string]interface{}
}

func (t *stubTool) Name() string        { return t.name }
func (t *stubTool) Description() string { return "stub " + t.name }
func (t *stubTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{})
}

func (t *stubTool) Execute(_ context.Context, args map[string]interface{}) *ToolResult {
	t.calls++
	t.lastArg = args
	if t.panics {
		panic("boom")
	}
	if t.result == nil {
		return NewToolResult(t.name + " ok")
	}
	return t.result
}

type staticStats SystemStats

func (s staticStats) Stats(context.Context) (SystemStats, error) { return SystemStats(s), nil }
