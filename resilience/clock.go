package resilience

import (
	"context"
	"time"
)

// Clock abstracts time so breaker cool-downs and retry backoff can be
// driven by a fake in tests without real delays.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RealClock returns a Clock backed by the system clock.
func RealClock() Clock { return realClock{} }
