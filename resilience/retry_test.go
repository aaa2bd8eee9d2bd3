package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryTransientThenSuccess(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	r := NewRetryer(RetryConfig{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 60 * time.Second, ExponentialBase: 2}, clock)

	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return Transient(errors.New("503 service unavailable"))
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	// attempt 2 waits base*2^1 = 2s, attempt 3 waits base*2^2 = 4s
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, clock.Sleeps())
}

func TestRetryDoesNotRetryValidationErrors(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	r := NewRetryer(RetryConfig{}, clock)

	calls := 0
	wantErr := errors.New("quote amount must be positive")
	err := r.Do(context.Background(), func() error {
		calls++
		return wantErr
	})

	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 1, calls)
	assert.Empty(t, clock.Sleeps())
}

func TestRetryExhaustionSurfacesLastError(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	r := NewRetryer(RetryConfig{MaxAttempts: 3}, clock)

	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		return Transient(errors.New("connection refused"))
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, 3, calls)
}

func TestRetryDelayIsCapped(t *testing.T) {
	t.Parallel()

	r := NewRetryer(RetryConfig{MaxAttempts: 10, BaseDelay: time.Second, MaxDelay: 5 * time.Second, ExponentialBase: 2}, newFakeClock())

	assert.Equal(t, 2*time.Second, r.Delay(2))
	assert.Equal(t, 4*time.Second, r.Delay(3))
	assert.Equal(t, 5*time.Second, r.Delay(4), "delay must not exceed max_delay")
	assert.Equal(t, 5*time.Second, r.Delay(8))
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRetryer(RetryConfig{MaxAttempts: 3}, newFakeClock())
	calls := 0
	err := r.Do(ctx, func() error {
		calls++
		return Transient(errors.New("timeout"))
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"marked", Transient(errors.New("boom")), true},
		{"wrapped_marked", errors.Join(errors.New("outer"), Transient(errors.New("inner"))), true},
		{"deadline", context.DeadlineExceeded, true},
		{"connection_reset", errors.New("read tcp: connection reset by peer"), true},
		{"eof", errors.New("unexpected EOF"), true},
		{"validation", errors.New("asset not routed"), false},
		{"circuit_open", ErrCircuitOpen, false},
		{"rate_limited", ErrRateLimited, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}
