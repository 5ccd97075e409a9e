package memory

import "strings"

// Compact bounds a transcript whose length exceeds threshold. Entry 0 is
// always retained. The kept tail starts at the first user entry found by
// scanning forward from len-window, so the tail never opens with a tool
// entry. When the window holds no user entry the result is entry 0 plus the
// last two entries; that fallback can still orphan a tool entry and is kept
// as is.
//
// Compact returns the input slice unchanged when no compaction is due.
func Compact(entries []Entry, threshold, window int) ([]Entry, bool) {
	if len(entries) <= threshold || len(entries) == 0 {
		return entries, false
	}

	start := len(entries) - window
	if start < 1 {
		start = 1
	}

	cut := -1
	for i := start; i < len(entries); i++ {
		if entries[i].Role == RoleUser {
			cut = i
			break
		}
	}

	var tail []Entry
	if cut >= 0 {
		tail = entries[cut:]
	} else {
		n := 2
		if len(entries)-1 < n {
			n = len(entries) - 1
		}
		tail = entries[len(entries)-n:]
	}

	kept := make([]Entry, 0, len(tail)+1)
	kept = append(kept, entries[0])
	kept = append(kept, tail...)
	return kept, true
}

// RollingSummary joins the last few user utterances and assistant replies
// into a short continuity note capped at maxChars.
func RollingSummary(entries []Entry, users, assistants, maxChars int) string {
	var userLines, assistantLines []string
	for i := len(entries) - 1; i >= 0; i-- {
		if len(userLines) >= users && len(assistantLines) >= assistants {
			break
		}
		e := entries[i]
		text := strings.Join(strings.Fields(e.Content), " ")
		if text == "" {
			continue
		}
		switch e.Role {
		case RoleUser:
			if len(userLines) < users {
				userLines = append(userLines, text)
			}
		case RoleAssistant:
			if len(e.ToolCalls) == 0 && len(assistantLines) < assistants {
				assistantLines = append(assistantLines, text)
			}
		}
	}

	if len(userLines) == 0 && len(assistantLines) == 0 {
		return ""
	}

	reverse(userLines)
	reverse(assistantLines)

	var b strings.Builder
	if len(userLines) > 0 {
		b.WriteString("User recently said: ")
		b.WriteString(strings.Join(userLines, " | "))
		b.WriteString(".")
	}
	if len(assistantLines) > 0 {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString("Assistant replied: ")
		b.WriteString(strings.Join(assistantLines, " | "))
		b.WriteString(".")
	}
	return truncateRunes(b.String(), maxChars)
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
