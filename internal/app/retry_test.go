package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"review_studio/internal/app"
	"review_studio/internal/domain"
)

func TestRetryWithBackoff_AlreadyExistsIsNotRetried(t *testing.T) {
	calls := 0
	err := app.RetryWithBackoff(context.Background(), 5, time.Millisecond, func(int) error {
		calls++
		return errors.New("Already exists")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, domain.IsAlreadyExists(err))
}

func TestRetryWithBackoff_GenericErrorUsesAllAttempts(t *testing.T) {
	calls := 0
	boom := errors.New("upstream 503")
	err := app.RetryWithBackoff(context.Background(), 4, time.Millisecond, func(int) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 4, calls)
}

func TestRetryWithBackoff_BackoffDoubles(t *testing.T) {
	var stamps []time.Time
	_ = app.RetryWithBackoff(context.Background(), 3, 20*time.Millisecond, func(int) error {
		stamps = append(stamps, time.Now())
		return errors.New("x")
	})
	require.Len(t, stamps, 3)
	assert.GreaterOrEqual(t, stamps[1].Sub(stamps[0]), 20*time.Millisecond)
	assert.GreaterOrEqual(t, stamps[2].Sub(stamps[1]), 40*time.Millisecond)
}

func TestRetryWithBackoff_SucceedsOnLaterAttempt(t *testing.T) {
	var attempts []int
	err := app.RetryWithBackoff(context.Background(), 3, time.Millisecond, func(a int) error {
		attempts = append(attempts, a)
		if a < 1 {
			return errors.New("flaky")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, attempts)
}

func TestRetryWithBackoff_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := app.RetryWithBackoff(ctx, 5, time.Hour, func(int) error {
		calls++
		cancel()
		return errors.New("x")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
