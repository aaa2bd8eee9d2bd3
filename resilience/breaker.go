package resilience

import (
	"sync"
	"time"
)

// BreakerState is the current state of a circuit breaker.
type BreakerState string

const (
	StateClosed   BreakerState = "CLOSED"
	StateOpen     BreakerState = "OPEN"
	StateHalfOpen BreakerState = "HALF_OPEN"
)

// BreakerConfig holds the thresholds for one circuit breaker.
type BreakerConfig struct {
	FailureThreshold int           `json:"failure_threshold" yaml:"failure_threshold"`
	SuccessThreshold int           `json:"success_threshold" yaml:"success_threshold"`
	Timeout          time.Duration `json:"timeout" yaml:"timeout"`
}

// DefaultBreakerConfig returns the standard thresholds: trip after 5
// consecutive failures, cool down for 120s, close again after 3
// consecutive half-open successes.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 3,
		Timeout:          120 * time.Second,
	}
}

// BreakerSnapshot is a point-in-time copy of breaker state for
// diagnostics.
type BreakerSnapshot struct {
	Service        string
	State          BreakerState
	Failures       int
	Successes      int
	LastTransition time.Time
}

// CircuitBreaker is a three-state fail-fast guard around one external
// service. All accounts on the same exchange share one breaker, so a
// failing service is fenced off for every caller at once.
type CircuitBreaker struct {
	service string
	cfg     BreakerConfig
	clock   Clock

	mu             sync.Mutex
	state          BreakerState
	failures       int
	successes      int
	trials         int
	lastTransition time.Time

	onTransition func(service string, from, to BreakerState)
}

// NewCircuitBreaker creates a CLOSED breaker for the named service.
func NewCircuitBreaker(service string, cfg BreakerConfig, clock Clock) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if clock == nil {
		clock = RealClock()
	}
	return &CircuitBreaker{
		service:        service,
		cfg:            cfg,
		clock:          clock,
		state:          StateClosed,
		lastTransition: clock.Now(),
	}
}

// OnTransition registers a callback invoked after every state change.
// The callback runs outside the breaker lock.
func (b *CircuitBreaker) OnTransition(fn func(service string, from, to BreakerState)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onTransition = fn
}

// Allow reports whether a call may proceed. In OPEN state it fails fast
// until the cool-down elapses, then admits a limited number of trial
// calls in HALF_OPEN.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()

	switch b.state {
	case StateClosed:
		b.mu.Unlock()
		return true

	case StateOpen:
		if b.clock.Now().Sub(b.lastTransition) < b.cfg.Timeout {
			b.mu.Unlock()
			return false
		}
		notify := b.transitionLocked(StateHalfOpen)
		b.trials = 1
		b.mu.Unlock()
		if notify != nil {
			notify()
		}
		return true

	default: // HALF_OPEN
		if b.trials >= b.cfg.SuccessThreshold {
			b.mu.Unlock()
			return false
		}
		b.trials++
		b.mu.Unlock()
		return true
	}
}

// RecordSuccess accounts one successful call.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	var notify func()

	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			notify = b.transitionLocked(StateClosed)
		}
	}
	b.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// RecordFailure accounts one failed call. In CLOSED state it trips the
// breaker at the failure threshold; in HALF_OPEN any failure reopens it
// and restarts the cool-down timer.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	var notify func()

	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			notify = b.transitionLocked(StateOpen)
		}
	case StateHalfOpen:
		notify = b.transitionLocked(StateOpen)
	}
	b.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// State returns the current state, applying the OPEN -> HALF_OPEN
// timeout check first so observers never see a stale OPEN.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.clock.Now().Sub(b.lastTransition) >= b.cfg.Timeout {
		return StateHalfOpen
	}
	return b.state
}

// Snapshot returns a copy of the breaker's counters for diagnostics.
func (b *CircuitBreaker) Snapshot() BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerSnapshot{
		Service:        b.service,
		State:          b.state,
		Failures:       b.failures,
		Successes:      b.successes,
		LastTransition: b.lastTransition,
	}
}

// transitionLocked flips state and returns the notification closure to
// run after the lock is released.
func (b *CircuitBreaker) transitionLocked(to BreakerState) func() {
	from := b.state
	b.state = to
	b.lastTransition = b.clock.Now()
	b.failures = 0
	b.successes = 0
	if to == StateHalfOpen {
		b.trials = 0
	}

	fn := b.onTransition
	if fn == nil || from == to {
		return nil
	}
	service := b.service
	return func() { fn(service, from, to) }
}

// BreakerSet lazily creates one breaker per service name so that two
// accounts on the same exchange share breaker state.
type BreakerSet struct {
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
	cfg      func(service string) BreakerConfig
	clock    Clock
	onTrans  func(service string, from, to BreakerState)
}

// NewBreakerSet builds a set; cfg may be nil to use defaults for every
// service.
func NewBreakerSet(cfg func(service string) BreakerConfig, clock Clock) *BreakerSet {
	if cfg == nil {
		cfg = func(string) BreakerConfig { return DefaultBreakerConfig() }
	}
	if clock == nil {
		clock = RealClock()
	}
	return &BreakerSet{
		breakers: make(map[string]*CircuitBreaker),
		cfg:      cfg,
		clock:    clock,
	}
}

// OnTransition registers a callback applied to every breaker in the set,
// including ones created later.
func (s *BreakerSet) OnTransition(fn func(service string, from, to BreakerState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTrans = fn
	for _, b := range s.breakers {
		b.OnTransition(fn)
	}
}

// For returns the breaker for a service, creating it on first use.
func (s *BreakerSet) For(service string) *CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.breakers[service]; ok {
		return b
	}
	b := NewCircuitBreaker(service, s.cfg(service), s.clock)
	if s.onTrans != nil {
		b.OnTransition(s.onTrans)
	}
	s.breakers[service] = b
	return b
}

// Snapshots returns a diagnostic copy of every breaker in the set.
func (s *BreakerSet) Snapshots() []BreakerSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]BreakerSnapshot, 0, len(s.breakers))
	for _, b := range s.breakers {
		out = append(out, b.Snapshot())
	}
	return out
}
