package base

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tether/pkg/errors"
)

func TestRetryPolicyDelay(t *testing.T) {
	rp := &RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		Factor:      2.0,
		MaxDelay:    10 * time.Second,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second}, // 16s capped
		{10, 10 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, rp.Delay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestRetryPolicyDelayDependsOnlyOnAttempt(t *testing.T) {
	rp := &RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, Factor: 3.0, MaxDelay: time.Hour}

	// Same attempt number always yields the same delay, regardless of
	// query order.
	first := rp.Delay(2)
	_ = rp.Delay(5)
	_ = rp.Delay(1)
	assert.Equal(t, first, rp.Delay(2))
}

func TestRetryPolicyExecuteSucceedsAfterFailures(t *testing.T) {
	rp := &RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond, Factor: 2.0, MaxDelay: 10 * time.Millisecond}

	var failures int
	calls := 0
	err := rp.Execute(context.Background(), func(context.Context) error {
		calls++
		if calls <= 2 {
			return errors.New(errors.ErrorTypeConnection, "unreachable")
		}
		return nil
	}, RetryHooks{
		OnFailure: func(int, error) { failures++ },
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, failures, "every failed attempt is counted")
}

func TestRetryPolicyExecuteExhaustsAttempts(t *testing.T) {
	rp := &RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Factor: 2.0, MaxDelay: 10 * time.Millisecond}

	var failures, backoffs int
	err := rp.Execute(context.Background(), func(context.Context) error {
		return errors.New(errors.ErrorTypeConnection, "unreachable")
	}, RetryHooks{
		OnFailure: func(int, error) { failures++ },
		OnBackoff: func(int, time.Duration) { backoffs++ },
	})

	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
	assert.Contains(t, err.Error(), "max retry attempts reached")
	assert.Equal(t, 3, failures)
	assert.Equal(t, 2, backoffs, "no backoff after the final failure")
}

func TestRetryPolicyExecuteSingleAttempt(t *testing.T) {
	rp := &RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond, Factor: 2.0, MaxDelay: 10 * time.Millisecond}

	var backoffs int
	err := rp.Execute(context.Background(), func(context.Context) error {
		return errors.New(errors.ErrorTypeConnection, "unreachable")
	}, RetryHooks{OnBackoff: func(int, time.Duration) { backoffs++ }})

	require.Error(t, err)
	assert.Zero(t, backoffs)
}

func TestRetryPolicyExecuteCancelledDuringBackoff(t *testing.T) {
	rp := &RetryPolicy{MaxAttempts: 5, BaseDelay: time.Minute, Factor: 2.0, MaxDelay: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- rp.Execute(ctx, func(context.Context) error {
			return errors.New(errors.ErrorTypeConnection, "unreachable")
		}, RetryHooks{
			OnBackoff: func(int, time.Duration) { cancel() },
		})
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "retry cancelled")
	case <-time.After(5 * time.Second):
		t.Fatal("Execute did not return after cancellation")
	}
}

func TestNewRetryPolicyUsesFixedBaseUnit(t *testing.T) {
	rp := NewRetryPolicy(3, 2.0, 10*time.Second)
	assert.Equal(t, time.Second, rp.BaseDelay)
	assert.Equal(t, 2*time.Second, rp.Delay(1))
}
