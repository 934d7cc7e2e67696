package llm_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/iacore/internal/llm"
)

func TestRateLimiterSlidingWindow(t *testing.T) {
	tests := map[string]struct {
		limit    int
		window   time.Duration
		calls    int
		gap      time.Duration
		expSlept int
	}{
		"Calls under the limit should never wait.": {
			limit:  10,
			window: time.Minute,
			calls:  10,
		},

		"Calls over the limit should wait for the window.": {
			limit:    10,
			window:   time.Minute,
			calls:    25,
			expSlept: 2,
		},

		"Spread calls should not wait.": {
			limit:  2,
			window: time.Minute,
			calls:  10,
			gap:    30 * time.Second,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			clock := newFakeClock()
			l, err := llm.NewRateLimiter(llm.RateLimiterConfig{
				Limit:  test.limit,
				Window: test.window,
				Now:    clock.Now,
				Sleep:  clock.Sleep,
			})
			require.NoError(err)

			var starts []time.Time
			for i := 0; i < test.calls; i++ {
				require.NoError(l.Wait(context.Background()))
				starts = append(starts, clock.Now())
				clock.Advance(test.gap)
			}

			// No window ever holds more than the limit.
			for i := test.limit; i < len(starts); i++ {
				assert.GreaterOrEqual(starts[i].Sub(starts[i-test.limit]), test.window)
			}

			assert.Len(clock.slept, test.expSlept)
		})
	}
}

func TestRateLimiterConcurrentWaiters(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	clock := newFakeClock()
	start := clock.Now()
	l, err := llm.NewRateLimiter(llm.RateLimiterConfig{Limit: 10, Window: time.Minute, Now: clock.Now, Sleep: clock.Sleep})
	require.NoError(err)

	var wg sync.WaitGroup
	errs := make(chan error, 25)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- l.Wait(context.Background())
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(err)
	}
	assert.Len(clock.slept, 2)
	assert.Equal(2*time.Minute, clock.Now().Sub(start))
	assert.Equal(5, l.InWindow())
}

func TestRateLimiterCancelledWait(t *testing.T) {
	clock := newFakeClock()
	l, err := llm.NewRateLimiter(llm.RateLimiterConfig{Limit: 1, Window: time.Minute, Now: clock.Now, Sleep: clock.Sleep})
	require.NoError(t, err)

	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = l.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, l.InWindow())
}

func TestNewRateLimiterInvalid(t *testing.T) {
	_, err := llm.NewRateLimiter(llm.RateLimiterConfig{Limit: 0, Window: time.Minute})
	assert.Error(t, err)

	_, err = llm.NewRateLimiter(llm.RateLimiterConfig{Limit: 1})
	assert.Error(t, err)
}
