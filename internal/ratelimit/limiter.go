package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter paces page pulls against one ECS management endpoint. Requests are
// scheduled on a fixed spacing derived from the configured rate; up to burst
// requests may run ahead of that schedule. A nil *Limiter never blocks.
type Limiter struct {
	mu      sync.Mutex
	spacing time.Duration
	ahead   time.Duration // how far the schedule may run ahead of now
	due     time.Time     // when the schedule next frees a slot
	now     func() time.Time
}

// New paces at ratePerSecond. A non-positive rate disables pacing and returns nil.
func New(ratePerSecond float64, burst int) *Limiter {
	if ratePerSecond <= 0 {
		return nil
	}
	burst = max(burst, 1)
	spacing := time.Duration(float64(time.Second) / ratePerSecond)
	return &Limiter{
		spacing: spacing,
		ahead:   spacing * time.Duration(burst-1),
		now:     time.Now,
	}
}

// reserve takes a slot if one is free and otherwise reports how long until
// the next one. Caller holds mu.
func (l *Limiter) reserve() (time.Duration, bool) {
	now := l.now()
	due := l.due
	if due.Before(now) {
		due = now
	}
	if wait := due.Sub(now) - l.ahead; wait > 0 {
		return wait, false
	}
	l.due = due.Add(l.spacing)
	return 0, true
}

func (l *Limiter) Allow() bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.reserve()
	return ok
}

// Wait blocks until the schedule frees a slot or ctx is done
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return ctx.Err()
	}
	for {
		l.mu.Lock()
		wait, ok := l.reserve()
		l.mu.Unlock()
		if ok {
			return nil
		}

		timer := time.NewTimer(max(wait, time.Millisecond))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *Limiter) Enabled() bool {
	return l != nil
}
