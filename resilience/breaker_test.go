package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAtFailureThreshold(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	b := NewCircuitBreaker("binance", BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 3,
		Timeout:          120 * time.Second,
	}, clock)

	for i := 0; i < 4; i++ {
		require.True(t, b.Allow())
		b.RecordFailure()
		assert.Equal(t, StateClosed, b.State())
	}

	require.True(t, b.Allow())
	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow(), "OPEN breaker must fail fast")
}

func TestBreakerHalfOpenAfterTimeout(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	b := NewCircuitBreaker("binance", BreakerConfig{
		FailureThreshold: 2,
		SuccessThreshold: 3,
		Timeout:          120 * time.Second,
	}, clock)

	b.RecordFailure()
	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())
	require.False(t, b.Allow())

	clock.Advance(119 * time.Second)
	assert.False(t, b.Allow(), "cool-down not elapsed yet")

	clock.Advance(2 * time.Second)
	assert.True(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.Snapshot().State)
}

func TestBreakerClosesAfterSuccessThreshold(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	b := NewCircuitBreaker("coinbase", BreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 3,
		Timeout:          time.Minute,
	}, clock)

	b.RecordFailure()
	clock.Advance(time.Minute)
	require.True(t, b.Allow())

	b.RecordSuccess()
	require.True(t, b.Allow())
	b.RecordSuccess()
	assert.Equal(t, StateHalfOpen, b.Snapshot().State)

	require.True(t, b.Allow())
	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	b := NewCircuitBreaker("coinbase", BreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 3,
		Timeout:          time.Minute,
	}, clock)

	b.RecordFailure()
	clock.Advance(time.Minute)
	require.True(t, b.Allow())
	b.RecordSuccess()

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.Snapshot().State)
	assert.False(t, b.Allow(), "failure in HALF_OPEN must restart the timer")

	// Timer restarted: another full timeout is required.
	clock.Advance(59 * time.Second)
	assert.False(t, b.Allow())
	clock.Advance(2 * time.Second)
	assert.True(t, b.Allow())
}

func TestBreakerHalfOpenLimitsTrialCalls(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	b := NewCircuitBreaker("binance", BreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Timeout:          time.Minute,
	}, clock)

	b.RecordFailure()
	clock.Advance(time.Minute)

	assert.True(t, b.Allow())
	assert.True(t, b.Allow())
	assert.False(t, b.Allow(), "only success_threshold trial calls may pass")
}

func TestBreakerTransitionCallback(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	b := NewCircuitBreaker("binance", BreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Minute}, clock)

	type transition struct{ from, to BreakerState }
	var seen []transition
	b.OnTransition(func(service string, from, to BreakerState) {
		assert.Equal(t, "binance", service)
		seen = append(seen, transition{from, to})
	})

	b.RecordFailure()
	clock.Advance(time.Minute)
	require.True(t, b.Allow())
	b.RecordSuccess()

	require.Len(t, seen, 3)
	assert.Equal(t, transition{StateClosed, StateOpen}, seen[0])
	assert.Equal(t, transition{StateOpen, StateHalfOpen}, seen[1])
	assert.Equal(t, transition{StateHalfOpen, StateClosed}, seen[2])
}

func TestBreakerSetSharesStatePerService(t *testing.T) {
	t.Parallel()

	set := NewBreakerSet(nil, newFakeClock())

	a := set.For("binance")
	b := set.For("binance")
	c := set.For("coinbase")

	assert.Same(t, a, b, "accounts on the same exchange share one breaker")
	assert.NotSame(t, a, c)
	assert.Len(t, set.Snapshots(), 2)
}
