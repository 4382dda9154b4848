package retrier

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Strategy{Attempts: 3, Delay: time.Millisecond}, func() error {
		calls++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_FailsTwiceThenSucceeds(t *testing.T) {
	calls := 0
	start := time.Now()

	err := Do(context.Background(), Strategy{Attempts: 3, Delay: 10 * time.Millisecond, Backoff: 2}, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	// Two backoff waits elapsed: 10ms + 20ms.
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Strategy{Attempts: 3, Delay: time.Millisecond}, func() error {
		calls++
		return errors.New("still broken")
	})

	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_FatalStopsEarly(t *testing.T) {
	calls := 0
	sentinel := errors.New("bad phone number")

	err := Do(context.Background(), Strategy{Attempts: 5, Delay: time.Millisecond}, func() error {
		calls++
		return Fatal(sentinel)
	})

	assert.Equal(t, 1, calls)
	assert.True(t, IsFatal(err))
	assert.ErrorIs(t, err, sentinel)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, Strategy{Attempts: 3, Delay: time.Millisecond}, func() error {
		calls++
		return errors.New("transient")
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := Do(ctx, Strategy{Attempts: 3, Delay: time.Hour}, func() error {
		calls++
		cancel()
		return errors.New("transient")
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestFatal_Nil(t *testing.T) {
	assert.NoError(t, Fatal(nil))
	assert.False(t, IsFatal(nil))
}

func TestIsFatal_WrappedFatal(t *testing.T) {
	err := fmt.Errorf("send whatsapp: %w", Fatal(errors.New("invalid destination")))
	assert.True(t, IsFatal(err))
}
