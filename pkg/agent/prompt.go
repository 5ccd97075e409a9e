package agent

import (
	"fmt"
	"strings"

	"github.com/dotsetgreg/dotvoice/pkg/memory"
	"github.com/dotsetgreg/dotvoice/pkg/profile"
)

var personaStyles = map[string]string{
	"mavrick": "helpful and witty",
	"jarvis":  "polite and British",
	"friday":  "efficient and sharp",
}

// BuildSystemPrompt renders the system entry for p. Tool summaries are the
// registry's one-line descriptions and may be empty.
func BuildSystemPrompt(p profile.Profile, toolSummaries []string) string {
	persona := p.Persona
	if persona == "" {
		persona = profile.DefaultPersona
	}
	style, ok := personaStyles[persona]
	if !ok {
		style = personaStyles[profile.DefaultPersona]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s, a highly intelligent voice assistant. You are %s.\n", capitalize(persona), style)
	fmt.Fprintf(&sb, "Address the user as %s. Replies are spoken aloud, so keep them short and avoid markdown.\n", p.UserName)
	sb.WriteString("You can switch your persona between Mavrick (default), Jarvis (polite/British) and Friday (efficient/sharp).\n")

	if len(toolSummaries) > 0 {
		sb.WriteString("\n## Available Tools\n\n")
		sb.WriteString("Use tools to act. Never claim an action happened without calling the tool.\n\n")
		for _, s := range toolSummaries {
			sb.WriteString(s)
			sb.WriteString("\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// NewMemory starts a session transcript for p and seeds it with the summary
// carried over from the previous session.
func NewMemory(p profile.Profile, toolSummaries []string, policy memory.Policy) *memory.Store {
	store := memory.NewStore(BuildSystemPrompt(p, toolSummaries), policy)
	store.SeedSummary(p.Summary)
	return store
}
