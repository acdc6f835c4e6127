package util

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket refilled at a fixed rate. It is safe for
// concurrent use.
type RateLimiter struct {
	rate   float64 // tokens per second
	burst  float64
	tokens float64
	last   time.Time
	now    func() time.Time
	mu     sync.Mutex
}

// NewRateLimiter allows perMinute operations per minute with bursts of up to
// burst operations (at least one). perMinute <= 0 disables limiting.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	b := float64(max(burst, 1))
	return &RateLimiter{
		rate:   float64(perMinute) / 60.0,
		burst:  b,
		tokens: b,
		last:   time.Now(),
		now:    time.Now,
	}
}

// reserve takes a token if one is available, otherwise returns how long to
// wait for the next one.
func (rl *RateLimiter) reserve() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.rate <= 0 {
		return 0
	}
	now := rl.now()
	rl.tokens = min(rl.tokens+now.Sub(rl.last).Seconds()*rl.rate, rl.burst)
	rl.last = now
	if rl.tokens >= 1 {
		rl.tokens--
		return 0
	}
	wait := time.Duration((1 - rl.tokens) / rl.rate * float64(time.Second))
	return max(wait, time.Millisecond)
}

// Wait blocks until a token is available or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		wait := rl.reserve()
		if wait == 0 {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
