package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RateLimiterConfig is the configuration of the RateLimiter.
type RateLimiterConfig struct {
	// Limit is the max number of calls in any window.
	Limit  int
	Window time.Duration
	// Now and Sleep are replaceable for tests.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

func (c *RateLimiterConfig) defaults() error {
	if c.Limit <= 0 {
		return fmt.Errorf("limit must be positive")
	}
	if c.Window <= 0 {
		return fmt.Errorf("window must be positive")
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Sleep == nil {
		c.Sleep = sleep
	}
	return nil
}

// RateLimiter is a sliding window limiter: it never lets more than Limit calls
// start within any Window long interval.
type RateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	stamps []time.Time
}

// NewRateLimiter returns a new RateLimiter.
func NewRateLimiter(cfg RateLimiterConfig) (*RateLimiter, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &RateLimiter{
		limit:  cfg.Limit,
		window: cfg.Window,
		now:    cfg.Now,
		sleep:  cfg.Sleep,
	}, nil
}

// Wait blocks until a call is allowed and records it. Waiters are served one at a time.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		now := r.now()
		r.prune(now)

		if len(r.stamps) < r.limit {
			r.stamps = append(r.stamps, now)
			return nil
		}

		wait := r.stamps[0].Add(r.window).Sub(now)
		if err := r.sleep(ctx, wait); err != nil {
			return fmt.Errorf("could not wait for rate window: %w", err)
		}
	}
}

// InWindow returns the number of calls recorded in the current window.
func (r *RateLimiter) InWindow() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.prune(r.now())
	return len(r.stamps)
}

func (r *RateLimiter) prune(now time.Time) {
	i := 0
	for i < len(r.stamps) && now.Sub(r.stamps[i]) >= r.window {
		i++
	}
	r.stamps = r.stamps[i:]
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
