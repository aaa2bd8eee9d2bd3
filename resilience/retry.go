package resilience

import (
	"context"
	"math"
	"time"
)

// RetryConfig holds the backoff schedule for one retry wrapper.
type RetryConfig struct {
	MaxAttempts     int           `json:"max_attempts" yaml:"max_attempts"`
	BaseDelay       time.Duration `json:"base_delay" yaml:"base_delay"`
	MaxDelay        time.Duration `json:"max_delay" yaml:"max_delay"`
	ExponentialBase float64       `json:"exponential_base" yaml:"exponential_base"`
}

// DefaultRetryConfig returns the standard schedule: 3 attempts, 1s base
// delay doubling up to 60s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		BaseDelay:       time.Second,
		MaxDelay:        60 * time.Second,
		ExponentialBase: 2,
	}
}

// Retryer wraps a single outbound call with exponential backoff. Only
// transient failures are retried; validation errors surface immediately.
// Retryer is independent of the circuit breaker: exhausting attempts is
// accounted as one failure by whoever composes the two.
type Retryer struct {
	cfg   RetryConfig
	clock Clock
}

// NewRetryer builds a Retryer; zero config fields fall back to defaults.
func NewRetryer(cfg RetryConfig, clock Clock) *Retryer {
	def := DefaultRetryConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.ExponentialBase <= 1 {
		cfg.ExponentialBase = def.ExponentialBase
	}
	if clock == nil {
		clock = RealClock()
	}
	return &Retryer{cfg: cfg, clock: clock}
}

// Do runs op up to MaxAttempts times. The first attempt is immediate;
// attempt n waits min(max_delay, base_delay * base^(n-1)) beforehand.
// The last error is returned when attempts are exhausted.
func (r *Retryer) Do(ctx context.Context, op func() error) error {
	var last error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := r.clock.Sleep(ctx, r.Delay(attempt)); err != nil {
				return err
			}
		}

		last = op()
		if last == nil {
			return nil
		}
		if !IsTransient(last) {
			return last
		}
	}
	return last
}

// Delay returns the backoff before the given attempt (attempt >= 2).
func (r *Retryer) Delay(attempt int) time.Duration {
	d := float64(r.cfg.BaseDelay) * math.Pow(r.cfg.ExponentialBase, float64(attempt-1))
	if d > float64(r.cfg.MaxDelay) {
		return r.cfg.MaxDelay
	}
	return time.Duration(d)
}
