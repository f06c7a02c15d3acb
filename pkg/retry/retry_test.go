package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func TestDo_Success(t *testing.T) {
	calls := 0
	result, attempts, err := Do(context.Background(), Config{MaxAttempts: 3}, func(attempt int) (string, error) {
		calls++
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	result, attempts, err := Do(context.Background(), Config{MaxAttempts: 5}, func(attempt int) (int, error) {
		if attempt < 3 {
			return 0, errTransient
		}
		return attempt, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, result)
	assert.Equal(t, 3, attempts)
}

func TestDo_NoRetryOnNonMatchingError(t *testing.T) {
	permanent := errors.New("permanent")
	config := Config{
		MaxAttempts: 5,
		RetryIf:     func(err error) bool { return errors.Is(err, errTransient) },
	}

	_, attempts, err := Do(context.Background(), config, func(attempt int) (struct{}, error) {
		return struct{}{}, permanent
	})

	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, attempts)
}

func TestDo_ExhaustsMaxAttempts(t *testing.T) {
	_, attempts, err := Do(context.Background(), Config{MaxAttempts: 4}, func(attempt int) (string, error) {
		return "", errTransient
	})

	require.ErrorIs(t, err, errTransient)
	assert.Equal(t, 4, attempts)
}

func TestDo_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	config := Config{MaxAttempts: 5, BaseDelay: time.Hour}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, attempts, err := Do(ctx, config, func(attempt int) (string, error) {
		return "", errTransient
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
	assert.Less(t, time.Since(start), time.Second)
}

func TestBackoff_ExponentialWithCap(t *testing.T) {
	config := Config{BaseDelay: time.Second, MaxDelay: 30 * time.Second}

	assert.Equal(t, 1*time.Second, Backoff(config, 1))
	assert.Equal(t, 2*time.Second, Backoff(config, 2))
	assert.Equal(t, 4*time.Second, Backoff(config, 3))
	assert.Equal(t, 16*time.Second, Backoff(config, 5))
	assert.Equal(t, 30*time.Second, Backoff(config, 6))
	assert.Equal(t, 30*time.Second, Backoff(config, 60))
}

func TestBackoff_JitterBounds(t *testing.T) {
	config := DefaultConfig()

	for i := 0; i < 200; i++ {
		d := Backoff(config, 3)
		assert.GreaterOrEqual(t, d, time.Duration(float64(4*time.Second)*0.8))
		assert.LessOrEqual(t, d, time.Duration(float64(4*time.Second)*1.2))
	}

	for i := 0; i < 200; i++ {
		d := Backoff(config, 10)
		assert.LessOrEqual(t, d, time.Duration(float64(30*time.Second)*1.2))
	}
}

func TestBackoff_ZeroBaseDelay(t *testing.T) {
	assert.Equal(t, time.Duration(0), Backoff(Config{Jitter: 0.2}, 3))
}
