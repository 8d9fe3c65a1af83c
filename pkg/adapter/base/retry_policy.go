package base

import (
	"context"
	"math"
	"time"

	"github.com/ajitpratap0/tether/pkg/errors"
)

// RetryPolicy drives a fallible operation through bounded retries with
// exponential backoff. The delay for a given attempt depends only on the
// attempt count, never on the previous delay:
//
//	delay = min(BaseDelay * Factor^attempt, MaxDelay)
//
// where attempt is the 1-based count of failures so far. The sequence is
// therefore identical for every retry cycle.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Factor      float64
	MaxDelay    time.Duration
}

// defaultBaseDelay is the fixed base unit of the backoff formula.
const defaultBaseDelay = time.Second

// NewRetryPolicy creates a retry policy from the adapter retry settings.
func NewRetryPolicy(maxAttempts int, factor float64, maxDelay time.Duration) *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   defaultBaseDelay,
		Factor:      factor,
		MaxDelay:    maxDelay,
	}
}

// Delay returns the backoff delay after the given number of failures.
func (rp *RetryPolicy) Delay(attempt int) time.Duration {
	delay := float64(rp.BaseDelay) * math.Pow(rp.Factor, float64(attempt))
	if delay > float64(rp.MaxDelay) {
		delay = float64(rp.MaxDelay)
	}
	return time.Duration(delay)
}

// RetryHooks observe the retry loop. OnFailure fires for every failed
// attempt with the 1-based failure count; OnBackoff fires only when another
// attempt remains, immediately before Execute sleeps for delay.
type RetryHooks struct {
	OnFailure func(attempt int, err error)
	OnBackoff func(attempt int, delay time.Duration)
}

// Execute runs fn until it succeeds or MaxAttempts failures accumulate.
// Between attempts it sleeps for the computed backoff delay, returning early
// if ctx is cancelled. Once the attempt budget is exhausted the last failure
// is returned wrapped; a success resets nothing, so the same policy value
// can drive independent invocations.
func (rp *RetryPolicy) Execute(ctx context.Context, fn func(ctx context.Context) error, hooks RetryHooks) error {
	var lastErr error

	for attempt := 1; attempt <= rp.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if hooks.OnFailure != nil {
			hooks.OnFailure(attempt, err)
		}

		if attempt == rp.MaxAttempts {
			break
		}

		delay := rp.Delay(attempt)
		if hooks.OnBackoff != nil {
			hooks.OnBackoff(attempt, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Wrap(ctx.Err(), errors.ErrorTypeConnection, "retry cancelled")
		case <-timer.C:
		}
	}

	return errors.Wrap(lastErr, errors.ErrorTypeConnection,
		"max retry attempts reached")
}
