// Package runner drives the agents through trading cycles: an exact
// cycle count, a confirmation gate before any live order, and one trade
// log append per agent per cycle.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/cryptoagent/agent"
	"github.com/rustyeddy/cryptoagent/resilience"
	"github.com/rustyeddy/cryptoagent/tradelog"
)

// ErrAborted is returned when the live confirmation gate is declined.
// No agent runs and nothing is appended to the trade log.
var ErrAborted = errors.New("live run aborted at confirmation gate")

// Gate decides whether a live run may proceed. It is consulted exactly
// once per invocation, before the first cycle, and never in paper mode.
type Gate func() (Decision, error)

// Runner executes agents sequentially, cycle by cycle.
type Runner struct {
	agents   []agent.Agent
	log      tradelog.Log
	alerts   *resilience.AlertManager
	clock    resilience.Clock
	interval time.Duration
	gate     Gate
}

// Option tweaks a Runner at construction.
type Option func(*Runner)

// WithInterval sets the pause between consecutive cycles. Zero runs
// cycles back to back.
func WithInterval(d time.Duration) Option {
	return func(r *Runner) { r.interval = d }
}

// WithClock injects the clock used for inter-cycle pauses.
func WithClock(c resilience.Clock) Option {
	return func(r *Runner) { r.clock = c }
}

// WithGate installs the live-mode confirmation gate. Without one, live
// runs abort unconditionally.
func WithGate(g Gate) Option {
	return func(r *Runner) { r.gate = g }
}

// New builds a runner over the given agents and trade log.
func New(agents []agent.Agent, log tradelog.Log, alerts *resilience.AlertManager, opts ...Option) *Runner {
	r := &Runner{
		agents: agents,
		log:    log,
		alerts: alerts,
		clock:  resilience.RealClock(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes exactly cycles cycles, or until ctx is cancelled when
// cycles is zero. In live mode the gate is evaluated once before
// anything else; a declined gate returns ErrAborted with zero cycles
// run. Context cancellation of an unbounded run is a clean stop, not an
// error.
func (r *Runner) Run(ctx context.Context, mode tradelog.Mode, cycles int) error {
	if cycles < 0 {
		return fmt.Errorf("runner: negative cycle count %d", cycles)
	}

	if mode == tradelog.Live {
		if r.gate == nil {
			return ErrAborted
		}
		decision, err := r.gate()
		if err != nil {
			return fmt.Errorf("runner: confirmation gate: %w", err)
		}
		if decision != Confirmed {
			return ErrAborted
		}
	}

	unbounded := cycles == 0
	for n := 0; unbounded || n < cycles; n++ {
		if err := ctx.Err(); err != nil {
			if unbounded {
				return nil
			}
			return err
		}

		if err := r.cycle(ctx, mode, n+1); err != nil {
			return err
		}

		last := !unbounded && n == cycles-1
		if r.interval > 0 && !last {
			if err := r.clock.Sleep(ctx, r.interval); err != nil {
				if unbounded {
					return nil
				}
				return err
			}
		}
	}
	return nil
}

// cycle runs every agent once and appends every entry. An agent error
// or a trade log write failure halts the run: the audit trail is not
// optional.
func (r *Runner) cycle(ctx context.Context, mode tradelog.Mode, n int) error {
	for _, a := range r.agents {
		r.alerts.Info(a.Name(), "cycle start", "cycle", n, "mode", string(mode))

		entry, err := a.RunCycle(ctx, mode)
		if err != nil {
			r.alerts.Critical(a.Name(), "cycle failed", "cycle", n, "error", err.Error())
			return fmt.Errorf("runner: agent %s cycle %d: %w", a.Name(), n, err)
		}

		if err := r.log.Append(entry); err != nil {
			r.alerts.Critical(a.Name(), "trade log append failed", "error", err.Error())
			return fmt.Errorf("runner: append entry for %s: %w", a.Name(), err)
		}
	}
	return nil
}
