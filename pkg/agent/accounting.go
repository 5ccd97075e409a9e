package agent

import (
	"sync"

	"github.com/dotsetgreg/dotvoice/pkg/journal"
	"github.com/dotsetgreg/dotvoice/pkg/providers"
)

// UsageSnapshot is the accountant state at one instant.
type UsageSnapshot struct {
	SessionCost float64 `json:"session_cost"`
	Balance     float64 `json:"balance"`
	TotalTokens int     `json:"total_tokens"`
	Calls       int     `json:"calls"`
}

// Accountant prices model calls at a linear per-million-token rate and
// draws them from a running balance that never drops below zero.
type Accountant struct {
	rateIn  float64
	rateOut float64

	mu      sync.Mutex
	session float64
	balance float64
	tokens  int
	calls   int
}

func NewAccountant(rateInPerMillion, rateOutPerMillion, balance float64) *Accountant {
	if balance < 0 {
		balance = 0
	}
	return &Accountant{rateIn: rateInPerMillion, rateOut: rateOutPerMillion, balance: balance}
}

func (a *Accountant) Cost(u providers.UsageInfo) float64 {
	return float64(u.PromptTokens)/1e6*a.rateIn + float64(u.CompletionTokens)/1e6*a.rateOut
}

// Charge books u and returns its cost. A nil usage costs nothing.
func (a *Accountant) Charge(u *providers.UsageInfo) float64 {
	if u == nil {
		return 0
	}
	cost := a.Cost(*u)
	tokens := u.TotalTokens
	if tokens == 0 {
		tokens = u.PromptTokens + u.CompletionTokens
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	a.tokens += tokens
	a.session += cost
	a.balance -= cost
	if a.balance < 0 {
		a.balance = 0
	}
	return cost
}

func (a *Accountant) Depleted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance <= 0
}

func (a *Accountant) Snapshot() UsageSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return UsageSnapshot{SessionCost: a.session, Balance: a.balance, TotalTokens: a.tokens, Calls: a.calls}
}

// RemainingBalance subtracts everything already spent according to the
// usage ledger from the configured starting balance.
func RemainingBalance(starting float64, spent journal.UsageTotals) float64 {
	left := starting - spent.Cost
	if left < 0 {
		return 0
	}
	return left
}
