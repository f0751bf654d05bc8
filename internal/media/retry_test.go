package media_test

import (
	"context"
	"errors"
	"testing"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ysicing/AutoEcoleMedia/internal/media"
)

func TestRetryStopsOnFirstSuccess(t *testing.T) {
	calls := 0
	v, err := media.Retry(context.Background(), fastRetry, "op", nil, func(context.Context) (int, error) {
		calls++
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, calls)
}

func TestRetryBoundedAttempts(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	_, err := media.Retry(context.Background(), fastRetry, "op", nil, func(context.Context) (string, error) {
		calls++
		return "", boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestRetryWaitsBetweenAttempts(t *testing.T) {
	p := media.RetryPolicy{Attempts: 3, Delay: 25 * time.Millisecond}
	start := time.Now()
	_, _ = media.Retry(context.Background(), p, "op", nil, func(context.Context) (int, error) {
		return 0, errors.New("nope")
	})
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestRetryPermanentErrorIsNotRetried(t *testing.T) {
	calls := 0
	bad := errors.New("bad input")
	_, err := media.Retry(context.Background(), fastRetry, "op", nil, func(context.Context) (int, error) {
		calls++
		return 0, backoff.Permanent(bad)
	})
	assert.ErrorIs(t, err, bad)
	assert.Equal(t, 1, calls)
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := media.DefaultRetryPolicy()
	assert.Equal(t, 3, p.Attempts)
	assert.Equal(t, 300*time.Millisecond, p.Delay)
}
