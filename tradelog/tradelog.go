// Package tradelog is the append-only record of what the agents did:
// one immutable entry per agent per cycle.
package tradelog

import (
	"time"
)

// Mode is the execution mode an entry was produced under.
type Mode string

const (
	Paper Mode = "paper"
	Live  Mode = "live"
)

// AgentType distinguishes the two strategy agents.
type AgentType string

const (
	Business AgentType = "business"
	Personal AgentType = "personal"
)

// OrderRecord is the outcome of one order attempt within a cycle.
// Failed and skipped orders are recorded, never silently dropped.
type OrderRecord struct {
	OrderID     string  `json:"order_id,omitempty"`
	Asset       string  `json:"asset"`
	Side        string  `json:"side"`
	QuoteAmount float64 `json:"quote_amount"`
	Price       float64 `json:"price,omitempty"`
	Status      string  `json:"status"` // filled | failed | skipped
	Error       string  `json:"error,omitempty"`
}

const (
	StatusFilled  = "filled"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// BusinessReport is the business agent's per-cycle payload.
type BusinessReport struct {
	FearGreed      int           `json:"fear_greed"`
	FearGreedLabel string        `json:"fear_greed_label"`
	Multiplier     float64       `json:"multiplier"`
	Ceiling        float64       `json:"ceiling"`
	Orders         []OrderRecord `json:"orders"`
	TotalQuote     float64       `json:"total_quote"`
}

// PersonalReport is the personal agent's per-cycle payload.
type PersonalReport struct {
	Score          float64       `json:"score"`
	Trades         int           `json:"trades"`
	Buys           int           `json:"buys"`
	Sells          int           `json:"sells"`
	PortfolioValue float64       `json:"portfolio_value"`
	RealizedPL     float64       `json:"realized_pl"`
	UnrealizedPL   float64       `json:"unrealized_pl"`
	Orders         []OrderRecord `json:"orders,omitempty"`
}

// Entry is one trade log record. Exactly one of Business/Personal is
// set, matching AgentType.
type Entry struct {
	ID        string          `json:"id"`
	Agent     string          `json:"agent"`
	AgentType AgentType       `json:"agent_type"`
	Mode      Mode            `json:"mode"`
	Time      time.Time       `json:"time"` // serialized ISO-8601
	Business  *BusinessReport `json:"business,omitempty"`
	Personal  *PersonalReport `json:"personal,omitempty"`
}

// Log is an append-only, bounded trade log. Entries are immutable once
// appended; when capacity is exceeded the oldest entries rotate out
// first.
type Log interface {
	Append(Entry) error
	Close() error
}
