package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransport = errors.New("connection reset")

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	attempts, err := Do(context.Background(), Policy{MaxRetries: 2}, func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesThenSucceeds(t *testing.T) {
	calls := 0
	attempts, err := Do(context.Background(), Policy{MaxRetries: 2, BaseDelay: time.Millisecond}, func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransport
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_ExhaustsBudget(t *testing.T) {
	calls := 0
	attempts, err := Do(context.Background(), Policy{MaxRetries: 2, BaseDelay: time.Millisecond}, func(context.Context) error {
		calls++
		return errTransport
	})

	assert.ErrorIs(t, err, errTransport)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{MaxRetries: 5, BaseDelay: time.Millisecond}, func(context.Context) error {
		calls++
		return Permanent(errTransport)
	})

	assert.ErrorIs(t, err, errTransport)
	assert.False(t, IsPermanent(err))
	assert.Equal(t, 1, calls)
}

func TestDo_AttemptTimeout(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{MaxRetries: 1, AttemptTimeout: 10 * time.Millisecond}, func(ctx context.Context) error {
		calls++
		<-ctx.Done()
		return ctx.Err()
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, calls)
}

func TestDo_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(ctx, Policy{MaxRetries: 5, BaseDelay: time.Hour}, func(context.Context) error {
		calls++
		cancel()
		return errTransport
	})

	assert.ErrorIs(t, err, errTransport)
	assert.Equal(t, 1, calls)
}

func TestCalculateBackoff(t *testing.T) {
	assert.Equal(t, time.Duration(0), CalculateBackoff(0, 3))

	for attempt := 0; attempt < 5; attempt++ {
		base := 100 * time.Millisecond * time.Duration(1<<uint(attempt))
		got := CalculateBackoff(100*time.Millisecond, attempt)
		assert.GreaterOrEqual(t, got, base-base/4)
		assert.LessOrEqual(t, got, base+base/4)
	}

	assert.LessOrEqual(t, CalculateBackoff(time.Second, 40), maxBackoff+maxBackoff/4)
}

func TestPermanent_Nil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
}
