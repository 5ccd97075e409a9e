package profile

import (
	"strings"
)

const (
	DefaultUserName = "Sir"
	DefaultPersona  = "mavrick"
	DefaultVoice    = "onyx"

	// SentinelPrefix marks a tool result that requests a persona switch.
	SentinelPrefix = "SWITCHING_PERSONA_TO_"
)

// DefaultWakeWords is the wake set used when a profile carries none.
func DefaultWakeWords() []string {
	return []string{"computer", "hey computer", "mavrick", "maverick"}
}

var personaVoices = map[string]string{
	"mavrick": "onyx",
	"jarvis":  "fable",
	"friday":  "shimmer",
}

// Personas lists the personas with a dedicated voice, sorted.
func Personas() []string {
	return []string{"friday", "jarvis", "mavrick"}
}

// VoiceFor maps a persona to its voice. Unknown personas speak with the
// default voice.
func VoiceFor(persona string) string {
	if v, ok := personaVoices[strings.ToLower(strings.TrimSpace(persona))]; ok {
		return v
	}
	return DefaultVoice
}

type Profile struct {
	UserName  string   `json:"user_name"`
	Persona   string   `json:"persona"`
	Voice     string   `json:"voice"`
	WakeWords []string `json:"wake_words"`
	Summary   string   `json:"summary"`
}

func Default() Profile {
	return Profile{
		UserName:  DefaultUserName,
		Persona:   DefaultPersona,
		Voice:     DefaultVoice,
		WakeWords: DefaultWakeWords(),
	}
}

// Normalize fills blank fields with defaults, lowercases the persona and
// wake words, and drops empty or duplicate wake words.
func (p Profile) Normalize() Profile {
	out := Profile{
		UserName: strings.TrimSpace(p.UserName),
		Persona:  strings.ToLower(strings.TrimSpace(p.Persona)),
		Voice:    strings.TrimSpace(p.Voice),
		Summary:  strings.TrimSpace(p.Summary),
	}
	if out.UserName == "" {
		out.UserName = DefaultUserName
	}
	if out.Persona == "" {
		out.Persona = DefaultPersona
	}
	if out.Voice == "" {
		out.Voice = VoiceFor(out.Persona)
	}
	out.WakeWords = normalizeWakeWords(p.WakeWords)
	if len(out.WakeWords) == 0 {
		out.WakeWords = DefaultWakeWords()
	}
	return out
}

func normalizeWakeWords(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.Join(strings.Fields(w), " "))
		if w == "" {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// Sentinel is the tool result that asks the orchestrator to switch persona.
func Sentinel(persona string) string {
	return SentinelPrefix + strings.ToUpper(strings.TrimSpace(persona))
}

// ParseSentinel extracts the persona name from text containing a sentinel.
// The name runs until the first character outside [A-Za-z0-9_].
func ParseSentinel(text string) (string, bool) {
	idx := strings.Index(text, SentinelPrefix)
	if idx < 0 {
		return "", false
	}
	rest := text[idx+len(SentinelPrefix):]
	end := strings.IndexFunc(rest, func(r rune) bool {
		return !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
	})
	if end >= 0 {
		rest = rest[:end]
	}
	if rest == "" {
		return "", false
	}
	return strings.ToUpper(rest), true
}
