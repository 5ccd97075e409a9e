package memory

import (
	"strings"

	"github.com/dotsetgreg/dotvoice/pkg/providers"
)

// Store is the conversation transcript for one session. It is owned by the
// active turn and is not safe for concurrent use.
type Store struct {
	entries []Entry
	policy  Policy
	summary string
}

func NewStore(systemPrompt string, policy Policy) *Store {
	return &Store{
		entries: []Entry{{Role: RoleSystem, Content: systemPrompt}},
		policy:  policy.normalized(),
	}
}

func (s *Store) Policy() Policy {
	return s.policy
}

func (s *Store) Append(e Entry) {
	if e.Role == RoleSystem {
		s.entries[0].Content = e.Content
		return
	}
	s.entries = append(s.entries, e)
}

func (s *Store) AppendUser(text string) {
	s.Append(Entry{Role: RoleUser, Content: text})
}

func (s *Store) AppendAssistant(text string) {
	s.Append(Entry{Role: RoleAssistant, Content: text})
}

func (s *Store) AppendToolCalls(text string, calls []providers.ToolCall) {
	s.Append(Entry{Role: RoleAssistant, Content: text, ToolCalls: calls})
}

func (s *Store) AppendToolResult(callID, toolName, result string) {
	s.Append(Entry{Role: RoleTool, Content: result, ToolCallID: callID, ToolName: toolName})
}

func (s *Store) Len() int {
	return len(s.entries)
}

// Entries returns a copy of the transcript.
func (s *Store) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *Store) Messages() []providers.Message {
	out := make([]providers.Message, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Message())
	}
	return out
}

func (s *Store) System() string {
	return s.entries[0].Content
}

func (s *Store) SetSystem(prompt string) {
	s.entries[0].Content = prompt
}

// Reset drops everything but the system entry.
func (s *Store) Reset() {
	s.entries = s.entries[:1:1]
}

// Compact applies the store policy and refreshes the rolling summary. It
// reports whether the transcript was truncated.
func (s *Store) Compact() bool {
	s.refreshSummary()
	kept, changed := Compact(s.entries, s.policy.Threshold, s.policy.Window)
	if changed {
		s.entries = kept
	}
	return changed
}

func (s *Store) refreshSummary() {
	if sum := RollingSummary(s.entries[1:], s.policy.SummaryUsers, s.policy.SummaryAssistants, s.policy.SummaryMaxChars); sum != "" {
		s.summary = sum
	}
}

// Summary is the latest rolling summary, or the seeded prior-session one.
func (s *Store) Summary() string {
	return s.summary
}

// SeedSummary injects a prior-session summary into the system entry. It is
// meant to be called once at session start.
func (s *Store) SeedSummary(prior string) {
	prior = strings.TrimSpace(prior)
	if prior == "" {
		return
	}
	s.summary = prior
	s.entries[0].Content = strings.TrimSpace(s.entries[0].Content) + "\n\nPrevious session summary: " + prior
}
