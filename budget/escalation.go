// Package budget converts market sentiment into a spending ceiling:
// buy aggressively into fear, pull back into greed.
package budget

import (
	"context"

	"github.com/rustyeddy/cryptoagent/resilience"
	"github.com/rustyeddy/cryptoagent/sentiment"
)

// Multiplier returns the spend multiplier for a fear/greed index value:
//
//	 0-19  extreme fear   3.0x
//	20-39  fear           2.0x
//	40-69  normal         1.0x
//	70-79  greed          0.7x
//	80-100 extreme greed  0.5x
func Multiplier(value int) float64 {
	switch sentiment.Classify(value) {
	case sentiment.ExtremeFear:
		return 3.0
	case sentiment.Fear:
		return 2.0
	case sentiment.Greed:
		return 0.7
	case sentiment.ExtremeGreed:
		return 0.5
	default:
		return 1.0
	}
}

// neutralValue is the reading assumed when the sentiment source is
// unreachable; it maps to the 1.0x multiplier.
const neutralValue = 50

// CycleBudget is the spending envelope for one cycle.
type CycleBudget struct {
	Reading    sentiment.Reading
	Multiplier float64
	Ceiling    float64
	// Fallback is set when the sentiment source failed and the neutral
	// multiplier was assumed.
	Fallback bool
}

// Engine computes the per-cycle ceiling from a fixed base budget and
// the live sentiment signal.
type Engine struct {
	base   float64
	source sentiment.Source
	alerts *resilience.AlertManager
}

// NewEngine builds an escalation engine over the given sentiment source.
func NewEngine(baseBudget float64, source sentiment.Source, alerts *resilience.AlertManager) *Engine {
	return &Engine{base: baseBudget, source: source, alerts: alerts}
}

// Base returns the configured base daily budget.
func (e *Engine) Base() float64 { return e.base }

// ForCycle returns this cycle's envelope. Sentiment-source failure is
// non-fatal: the engine falls back to the neutral multiplier and emits
// a warning alert.
func (e *Engine) ForCycle(ctx context.Context) CycleBudget {
	reading, err := e.source.Latest(ctx)
	if err != nil {
		e.alerts.Warn("sentiment", "fear/greed source unavailable, assuming neutral",
			"error", err.Error())
		reading = sentiment.Reading{
			Value: neutralValue,
			Label: sentiment.Classify(neutralValue),
		}
		m := Multiplier(reading.Value)
		return CycleBudget{Reading: reading, Multiplier: m, Ceiling: e.base * m, Fallback: true}
	}

	m := Multiplier(reading.Value)
	return CycleBudget{Reading: reading, Multiplier: m, Ceiling: e.base * m}
}
