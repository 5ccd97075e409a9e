package memory

import "github.com/dotsetgreg/dotvoice/pkg/providers"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Entry is one transcript record. Tool entries carry the id of the call
// they answer; assistant entries may carry the calls they issued.
type Entry struct {
	Role       Role
	Content    string
	ToolCalls  []providers.ToolCall
	ToolCallID string
	ToolName   string
}

func (e Entry) Message() providers.Message {
	return providers.Message{
		Role:       string(e.Role),
		Content:    e.Content,
		ToolCalls:  e.ToolCalls,
		ToolCallID: e.ToolCallID,
		Name:       e.ToolName,
	}
}

// Policy bounds the transcript and the rolling summary.
type Policy struct {
	Threshold         int
	Window            int
	SummaryUsers      int
	SummaryAssistants int
	SummaryMaxChars   int
}

func DefaultPolicy() Policy {
	return Policy{
		Threshold:         30,
		Window:            15,
		SummaryUsers:      3,
		SummaryAssistants: 2,
		SummaryMaxChars:   800,
	}
}

func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.Threshold <= 0 {
		p.Threshold = d.Threshold
	}
	if p.Window <= 0 {
		p.Window = d.Window
	}
	if p.SummaryUsers <= 0 {
		p.SummaryUsers = d.SummaryUsers
	}
	if p.SummaryAssistants <= 0 {
		p.SummaryAssistants = d.SummaryAssistants
	}
	if p.SummaryMaxChars <= 0 {
		p.SummaryMaxChars = d.SummaryMaxChars
	}
	return p
}
