package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "tweetcrawl/pkg/errors"
	"tweetcrawl/pkg/logger"
)

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   1 * time.Second,
		Multiplier: 2.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second},
		{9, 1 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, backoff.NextDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestExponentialBackoffJitterBounds(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}

	for i := 0; i < 20; i++ {
		delay := backoff.NextDelay(2)
		assert.GreaterOrEqual(t, delay, 140*time.Millisecond)
		assert.LessOrEqual(t, delay, 260*time.Millisecond)
	}
}

func TestConstantBackoff(t *testing.T) {
	backoff := &ConstantBackoff{Delay: 2 * time.Second}
	assert.Equal(t, time.Duration(0), backoff.NextDelay(0))
	assert.Equal(t, 2*time.Second, backoff.NextDelay(1))
	assert.Equal(t, 2*time.Second, backoff.NextDelay(7))
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	calls := 0
	cfg := Fixed(5, time.Millisecond, nil)

	err := Do(func() error {
		calls++
		if calls < 3 {
			return errs.Timeout("front item not visible", nil)
		}
		return nil
	}, cfg)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	var delays []time.Duration
	cfg := Fixed(5, time.Millisecond, OnlyType(errs.ErrorTypeTimeout))
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		delays = append(delays, delay)
	}

	err := Do(func() error {
		calls++
		return errs.Timeout("front item not visible", nil)
	}, cfg)

	require.Error(t, err)
	assert.Equal(t, 5, calls)
	assert.Len(t, delays, 4)
	assert.True(t, errs.IsType(err, errs.ErrorTypeTimeout))
	assert.Contains(t, err.Error(), "max retry attempts (5) exceeded")
}

func TestDoDoesNotRetryOtherTypes(t *testing.T) {
	calls := 0
	cfg := Fixed(5, time.Millisecond, OnlyType(errs.ErrorTypeTimeout))

	err := Do(func() error {
		calls++
		return errs.Extraction("unreadable item", "", nil)
	}, cfg)

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, errs.IsType(err, errs.ErrorTypeExtraction))
}

func TestDefaultRetryIf(t *testing.T) {
	assert.False(t, DefaultRetryIf(nil))
	assert.True(t, DefaultRetryIf(errs.Timeout("x", nil)))
	assert.True(t, DefaultRetryIf(errs.Extraction("x", "", nil)))
	assert.False(t, DefaultRetryIf(errs.Configuration("x")))
	assert.False(t, DefaultRetryIf(errs.Storage("x", nil)))
	assert.False(t, DefaultRetryIf(context.Canceled))
	assert.False(t, DefaultRetryIf(errors.New("plain")))
}

func TestDoCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Fixed(5, time.Hour, nil)
	cfg.Context = ctx
	cfg.OnRetry = func(int, error, time.Duration) { cancel() }

	err := Do(func() error {
		return errs.Timeout("front item not visible", nil)
	}, cfg)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	got, err := DoWithResult(func() (string, error) {
		calls++
		if calls == 1 {
			return "", errs.Extraction("stale element", "", nil)
		}
		return "ok", nil
	}, Fixed(2, time.Millisecond, nil))

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestRetrierLogsAttempts(t *testing.T) {
	log := logger.NewTestLogger()
	r := NewRetrier(Fixed(2, time.Millisecond, nil)).
		WithContext(context.Background()).
		WithLogger(log)

	err := r.Do(func() error { return errs.Timeout("front item not visible", nil) })

	require.Error(t, err)
	assert.Equal(t, 2, r.MaxAttempts())
	assert.True(t, log.HasMessage("retrying operation"))
	assert.True(t, log.HasMessage("max retry attempts exceeded"))
}

func TestWait(t *testing.T) {
	assert.NoError(t, Wait(context.Background(), 0))
	assert.NoError(t, Wait(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Wait(ctx, time.Hour), context.Canceled)
}

func TestDoReportsBackoffDelays(t *testing.T) {
	cfg := &Config{
		MaxAttempts: 3,
		Backoff:     &ExponentialBackoff{BaseDelay: time.Microsecond, MaxDelay: time.Millisecond, Multiplier: 2},
		RetryIf:     func(error) bool { return true },
	}

	// the same config serves repeated calls with the same schedule
	for run := 0; run < 2; run++ {
		var delays []time.Duration
		cfg.OnRetry = func(_ int, _ error, delay time.Duration) {
			delays = append(delays, delay)
		}
		err := Do(func() error { return errors.New("flaky") }, cfg)
		require.Error(t, err)
		assert.Equal(t, []time.Duration{time.Microsecond, 2 * time.Microsecond}, delays)
	}
}
