package budget

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rustyeddy/cryptoagent/resilience"
	"github.com/rustyeddy/cryptoagent/sentiment"
)

type fixedSource struct {
	reading sentiment.Reading
	err     error
}

func (s fixedSource) Latest(context.Context) (sentiment.Reading, error) {
	return s.reading, s.err
}

func TestMultiplierTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value int
		want  float64
	}{
		{0, 3.0},
		{14, 3.0},
		{19, 3.0},
		{20, 2.0},
		{39, 2.0},
		{40, 1.0},
		{69, 1.0},
		{70, 0.7},
		{79, 0.7},
		{80, 0.5},
		{100, 0.5},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Multiplier(tt.value), "value %d", tt.value)
	}
}

func TestForCycleExtremeFearCeiling(t *testing.T) {
	t.Parallel()

	src := fixedSource{reading: sentiment.Reading{Value: 14, Label: sentiment.ExtremeFear}}
	e := NewEngine(28, src, resilience.NewAlertManager())

	cb := e.ForCycle(context.Background())
	assert.Equal(t, 3.0, cb.Multiplier)
	assert.InDelta(t, 84.0, cb.Ceiling, 1e-9)
	assert.False(t, cb.Fallback)
}

func TestForCycleFallsBackToNeutral(t *testing.T) {
	t.Parallel()

	src := fixedSource{err: errors.New("dial tcp: connection refused")}
	e := NewEngine(28, src, resilience.NewAlertManager())

	cb := e.ForCycle(context.Background())
	assert.True(t, cb.Fallback)
	assert.Equal(t, 1.0, cb.Multiplier)
	assert.InDelta(t, 28.0, cb.Ceiling, 1e-9)
	assert.Equal(t, sentiment.Normal, cb.Reading.Label)
}
