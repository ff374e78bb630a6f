package ratelimit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"banana-studio-backend/internal/ratelimit"
)

func TestMemoryGate_MinimumInterval(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	gate := ratelimit.NewMemoryGateWithClock(5*time.Second, func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, gate.Allow(ctx, "user-1"))

	now = now.Add(1500 * time.Millisecond)
	err := gate.Allow(ctx, "user-1")
	var wait *ratelimit.WaitError
	require.True(t, errors.As(err, &wait))
	assert.Equal(t, 3500*time.Millisecond, wait.Remaining)
	assert.Equal(t, 4, wait.Seconds())
	assert.Equal(t, "please wait 4 seconds before submitting another generation request", err.Error())

	assert.NoError(t, gate.Allow(ctx, "user-2"))

	now = now.Add(3500 * time.Millisecond)
	assert.NoError(t, gate.Allow(ctx, "user-1"))
}

func TestMemoryGate_RejectedRequestDoesNotExtendWait(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	gate := ratelimit.NewMemoryGateWithClock(5*time.Second, func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, gate.Allow(ctx, "u"))
	now = now.Add(4 * time.Second)
	require.Error(t, gate.Allow(ctx, "u"))
	now = now.Add(time.Second)
	assert.NoError(t, gate.Allow(ctx, "u"))
}

func TestMemoryGate_ZeroIntervalDisables(t *testing.T) {
	gate := ratelimit.NewMemoryGate(0)

	for i := 0; i < 3; i++ {
		assert.NoError(t, gate.Allow(context.Background(), "u"))
	}
}

func TestWaitError_RoundsUpToOneSecond(t *testing.T) {
	assert.Equal(t, 1, (&ratelimit.WaitError{Remaining: 10 * time.Millisecond}).Seconds())
	assert.Equal(t, 1, (&ratelimit.WaitError{}).Seconds())
}

func TestMemoryGate_ReleaseReopensSlot(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	gate := ratelimit.NewMemoryGateWithClock(5*time.Second, func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, gate.Allow(ctx, "user-1"))
	require.NoError(t, gate.Release(ctx, "user-1"))

	now = now.Add(time.Second)
	require.NoError(t, gate.Allow(ctx, "user-1"))
	assert.Error(t, gate.Allow(ctx, "user-1"))
}
