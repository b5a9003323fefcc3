package retry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReconnectStrategy(t *testing.T) {
	strategy := ReconnectStrategy()

	assert.Equal(t, 0, strategy.MaxAttempts)
	assert.Equal(t, 5*time.Second, strategy.BaseDelay)
	assert.Equal(t, time.Minute, strategy.MaxDelay)
	assert.Equal(t, 1.5, strategy.ExponentialBase)
}

func TestPersistStrategy(t *testing.T) {
	strategy := PersistStrategy()

	assert.Equal(t, 5, strategy.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, strategy.BaseDelay)
	assert.Equal(t, 10*time.Second, strategy.MaxDelay)
}

func TestStrategy_CalculateRetryDelay(t *testing.T) {
	strategy := PersistStrategy()

	tests := []struct {
		name          string
		retry         int
		expectedDelay time.Duration
	}{
		{name: "negative - base delay", retry: -1, expectedDelay: 500 * time.Millisecond},
		{name: "first retry - base delay", retry: 0, expectedDelay: 500 * time.Millisecond},
		{name: "second retry - doubled", retry: 1, expectedDelay: time.Second},
		{name: "third retry", retry: 2, expectedDelay: 2 * time.Second},
		{name: "fifth retry", retry: 4, expectedDelay: 8 * time.Second},
		{name: "sixth retry - capped", retry: 5, expectedDelay: 10 * time.Second},
		{name: "large retry - still capped", retry: 100, expectedDelay: 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedDelay, strategy.CalculateRetryDelay(tt.retry))
		})
	}
}

func TestStrategy_CalculateRetryDelay_Reconnect(t *testing.T) {
	strategy := ReconnectStrategy()

	assert.Equal(t, 5*time.Second, strategy.CalculateRetryDelay(0))
	assert.Equal(t, 7500*time.Millisecond, strategy.CalculateRetryDelay(1))
	assert.Equal(t, time.Minute, strategy.CalculateRetryDelay(20))
}

func TestStrategy_IsRetryable(t *testing.T) {
	limited := Strategy{MaxAttempts: 3}
	assert.True(t, limited.IsRetryable(0))
	assert.True(t, limited.IsRetryable(2))
	assert.False(t, limited.IsRetryable(3))

	unlimited := Strategy{}
	assert.True(t, unlimited.IsRetryable(1_000_000))
}

func TestStrategy_Do(t *testing.T) {
	strategy := Strategy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, ExponentialBase: 2}

	t.Run("succeeds after failures", func(t *testing.T) {
		calls := 0
		var retried []int
		err := strategy.Do(context.Background(), func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("boom")
			}
			return nil
		}, func(attempt int, _ error) { retried = append(retried, attempt) })

		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, []int{1, 2}, retried)
	})

	t.Run("gives up", func(t *testing.T) {
		calls := 0
		boom := errors.New("boom")
		err := strategy.Do(context.Background(), func(context.Context) error {
			calls++
			return boom
		}, nil)

		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 3, calls)
	})

	t.Run("context canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		slow := Strategy{BaseDelay: time.Hour}
		err := slow.Do(ctx, func(context.Context) error {
			cancel()
			return errors.New("boom")
		}, nil)

		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestStrategy_GetRetrySchedule(t *testing.T) {
	schedule := PersistStrategy().GetRetrySchedule()

	assert.True(t, strings.HasPrefix(schedule, "Retry Schedule:\n"))
	assert.Contains(t, schedule, "Retry 1: after 500ms")
	assert.Contains(t, schedule, "Retry 4: after 4s")
	assert.NotContains(t, schedule, "Retry 5")

	assert.Contains(t, ReconnectStrategy().GetRetrySchedule(), "unlimited")
}
