package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnthusAI/Tactus/internal/retry"
	"github.com/AnthusAI/Tactus/tactuserr"
)

func fastPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestDoReturnsNilOnFirstSuccess(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), fastPolicy(), func(context.Context, int) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesOnlyProviderRetryable(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), fastPolicy(), func(_ context.Context, attempt int) error {
		calls++
		if attempt < 3 {
			return tactuserr.New(tactuserr.KindProviderRetryable, "try again")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoReturnsFatalErrorsImmediately(t *testing.T) {
	calls := 0
	sentinel := tactuserr.New(tactuserr.KindProviderFatal, "nope")
	err := retry.Do(context.Background(), fastPolicy(), func(context.Context, int) error {
		calls++
		return sentinel
	})
	assert.Same(t, sentinel, err)
	assert.Equal(t, 1, calls)
}

func TestDoReturnsNonTactusErrorsImmediately(t *testing.T) {
	sentinel := errors.New("plain error")
	err := retry.Do(context.Background(), fastPolicy(), func(context.Context, int) error {
		return sentinel
	})
	assert.Same(t, sentinel, err)
}

func TestDoExhaustsAndWrapsLastError(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), fastPolicy(), func(context.Context, int) error {
		calls++
		return tactuserr.New(tactuserr.KindProviderRetryable, "still failing")
	})

	var exhausted *retry.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, exhausted.Attempts)
}

func TestDoStopsOnContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := retry.Do(ctx, retry.Policy{MaxAttempts: 5, InitialBackoff: 10 * time.Millisecond, MaxBackoff: time.Second, BackoffMultiplier: 2}, func(context.Context, int) error {
		return tactuserr.New(tactuserr.KindProviderRetryable, "retry me")
	})

	var tErr *tactuserr.Error
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, tactuserr.KindCancelled, tErr.Kind)
}
