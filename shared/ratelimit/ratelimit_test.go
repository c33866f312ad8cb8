package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWait_UnderBudgetDoesNotBlock(t *testing.T) {
	limiter := New(3, time.Second)

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Wait(context.Background()))
	}

	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, 3, limiter.Pending())
}

func TestWait_BlocksUntilWindowElapses(t *testing.T) {
	// Two calls per 200ms window; the third must wait out the window
	// measured from the first call.
	limiter := New(2, 200*time.Millisecond)

	start := time.Now()
	require.NoError(t, limiter.Wait(context.Background()))
	require.NoError(t, limiter.Wait(context.Background()))
	require.NoError(t, limiter.Wait(context.Background()))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 180*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestWait_WindowSlides(t *testing.T) {
	limiter := New(1, 100*time.Millisecond)

	require.NoError(t, limiter.Wait(context.Background()))
	time.Sleep(120 * time.Millisecond)

	// The first stamp has aged out; this must not block.
	start := time.Now()
	require.NoError(t, limiter.Wait(context.Background()))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestWait_ContextCancel(t *testing.T) {
	limiter := New(1, time.Minute)
	require.NoError(t, limiter.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
