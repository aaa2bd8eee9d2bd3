// Package agent holds the two strategy agents: the business agent
// accumulates toward a target allocation, the personal agent day-trades
// a small fixed budget. Both produce exactly one trade log entry per
// cycle, whatever happens below the adapter boundary.
package agent

import (
	"context"

	"github.com/rustyeddy/cryptoagent/tradelog"
)

// Agent is one autonomous strategy unit driven by the runner.
type Agent interface {
	Name() string
	Type() tradelog.AgentType

	// RunCycle executes one full strategy cycle and returns the entry
	// to append to the trade log. Failures below the adapter boundary
	// are folded into the entry as failed/skipped order records; an
	// error return is reserved for broken invariants, not bad markets.
	RunCycle(ctx context.Context, mode tradelog.Mode) (tradelog.Entry, error)
}
