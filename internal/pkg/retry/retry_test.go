package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoReturnsFirstSuccess(t *testing.T) {
	calls := 0
	result, cerr := Do(context.Background(), Policy{Timeout: time.Second, MaxRetries: 2}, func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})

	require.Nil(t, cerr)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	result, cerr := Do(context.Background(), Policy{Timeout: time.Second, MaxRetries: 2, RetryDelay: time.Millisecond}, func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("service unavailable")
		}
		return 7, nil
	})

	require.Nil(t, cerr)
	assert.Equal(t, 7, result)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsRetries(t *testing.T) {
	calls := 0
	_, cerr := Do(context.Background(), Policy{Timeout: time.Second, MaxRetries: 2, RetryDelay: time.Millisecond}, func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("connection refused")
	})

	require.NotNil(t, cerr)
	assert.Equal(t, KindNetworkError, cerr.Kind)
	// One attempt plus two retries.
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnNonRetryableError(t *testing.T) {
	calls := 0
	_, cerr := Do(context.Background(), Policy{Timeout: time.Second, MaxRetries: 5, RetryDelay: time.Millisecond}, func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("status=404 not found")
	})

	require.NotNil(t, cerr)
	assert.Equal(t, KindMediaNotFound, cerr.Kind)
	assert.False(t, cerr.Retryable())
	assert.Equal(t, 1, calls, "a final failure must not burn retries")
}

func TestDoAppliesPerAttemptTimeout(t *testing.T) {
	calls := 0
	_, cerr := Do(context.Background(), Policy{Timeout: 10 * time.Millisecond, MaxRetries: 1, RetryDelay: time.Millisecond}, func(ctx context.Context) (int, error) {
		calls++
		<-ctx.Done()
		return 0, ctx.Err()
	})

	require.NotNil(t, cerr)
	assert.Equal(t, KindTimeout, cerr.Kind)
	// Each attempt gets a fresh timeout, so the timeout itself is retryable.
	assert.Equal(t, 2, calls)
}

func TestDoStopsWhenCallerContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, cerr := Do(ctx, Policy{Timeout: time.Second, MaxRetries: 5, RetryDelay: 50 * time.Millisecond}, func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("service unavailable")
	})

	require.NotNil(t, cerr)
	assert.Equal(t, 1, calls, "the retry sleep must observe the caller's context")
}

func TestDoTreatsZeroPolicyAsSingleAttempt(t *testing.T) {
	calls := 0
	_, cerr := Do(context.Background(), Policy{MaxRetries: -3}, func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("boom")
	})

	require.NotNil(t, cerr)
	assert.Equal(t, 1, calls)
}
