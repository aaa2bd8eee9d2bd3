package resilience

import (
	"sync"

	"golang.org/x/time/rate"
)

// LimitConfig is a token bucket definition for one external service.
type LimitConfig struct {
	PerSecond float64 `json:"per_second" yaml:"per_second"`
	Burst     int     `json:"burst" yaml:"burst"`
}

// DefaultLimitConfig allows 10 calls/s with a burst of 20, comfortably
// under the public API limits of the exchanges we talk to.
func DefaultLimitConfig() LimitConfig {
	return LimitConfig{PerSecond: 10, Burst: 20}
}

// RateLimiter keeps one token bucket per external service. Allow never
// blocks; a false result means "defer or skip this cycle".
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	cfg     func(service string) LimitConfig
}

// NewRateLimiter builds a limiter; cfg may be nil to use defaults for
// every service.
func NewRateLimiter(cfg func(service string) LimitConfig) *RateLimiter {
	if cfg == nil {
		cfg = func(string) LimitConfig { return DefaultLimitConfig() }
	}
	return &RateLimiter{
		buckets: make(map[string]*rate.Limiter),
		cfg:     cfg,
	}
}

// Allow reports whether a call to the service may proceed now, consuming
// one token if so.
func (l *RateLimiter) Allow(service string) bool {
	return l.bucket(service).Allow()
}

// Tokens returns the current token count for diagnostics.
func (l *RateLimiter) Tokens(service string) float64 {
	return l.bucket(service).Tokens()
}

func (l *RateLimiter) bucket(service string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.buckets[service]; ok {
		return b
	}
	cfg := l.cfg(service)
	if cfg.PerSecond <= 0 {
		cfg = DefaultLimitConfig()
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	b := rate.NewLimiter(rate.Limit(cfg.PerSecond), cfg.Burst)
	l.buckets[service] = b
	return b
}
