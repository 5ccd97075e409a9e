package journal

import "time"

// Audit statuses for dispatched tool calls.
const (
	StatusExecuted = "executed"
	StatusBlocked  = "blocked"
	StatusFailed   = "failed"
	StatusMissing  = "missing"
)

type AuditRecord struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	Detail    string    `json:"detail"`
	Status    string    `json:"status"`
}

// Line renders the record the way the action log displays it.
func (r AuditRecord) Line() string {
	return r.Timestamp.Format("2006-01-02 15:04:05") + " | " + r.Status + " | " + r.Kind + " | " + r.Detail
}

// History sources.
const (
	SourceVoice   = "voice"
	SourceText    = "text"
	SourceChannel = "channel"
)

type HistoryEntry struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

type SessionLogEntry struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type Note struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type UsageRecord struct {
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	Cost             float64   `json:"cost"`
	CreatedAt        time.Time `json:"created_at"`
}

type UsageTotals struct {
	Calls            int     `json:"calls"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	Cost             float64 `json:"cost"`
}
