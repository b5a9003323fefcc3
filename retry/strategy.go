// Package retry provides exponential backoff strategies for stream reconnects
// and persistence retries.
package retry

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
)

// Strategy defines exponential backoff behavior.
//
// The delay before retry number n (0-based) follows:
// delay = min(BaseDelay * ExponentialBase^n, MaxDelay)
//
// Example with ReconnectStrategy (5s base, 1.5 exponential, 1m max):
//
//	Retry 0: 5s
//	Retry 1: 7.5s
//	Retry 2: 11.25s
//	...
//	Retry 7: 1m (capped)
type Strategy struct {
	MaxAttempts     int           // Attempts allowed before giving up; 0 means unlimited
	BaseDelay       time.Duration // Delay before the first retry
	MaxDelay        time.Duration // Cap on any single delay
	ExponentialBase float64       // Backoff multiplier (e.g., 2.0 for doubling)
}

// ReconnectStrategy returns the strategy used by the stream transport to
// re-dial a dropped websocket: unlimited attempts starting at 5s.
func ReconnectStrategy() Strategy {
	return Strategy{
		MaxAttempts:     0,
		BaseDelay:       5 * time.Second,
		MaxDelay:        time.Minute,
		ExponentialBase: 1.5,
	}
}

// PersistStrategy returns the strategy used to retry failed saves:
// 5 attempts, 500ms doubling up to 10s.
func PersistStrategy() Strategy {
	return Strategy{
		MaxAttempts:     5,
		BaseDelay:       500 * time.Millisecond,
		MaxDelay:        10 * time.Second,
		ExponentialBase: 2.0,
	}
}

// CalculateRetryDelay calculates the delay before retry number retry (0-based)
// using exponential backoff.
func (s Strategy) CalculateRetryDelay(retry int) time.Duration {
	if retry <= 0 {
		return s.capped(float64(s.BaseDelay))
	}

	base := s.ExponentialBase
	if base < 1 {
		base = 1
	}
	return s.capped(float64(s.BaseDelay) * math.Pow(base, float64(retry)))
}

func (s Strategy) capped(delay float64) time.Duration {
	if s.MaxDelay > 0 && delay > float64(s.MaxDelay) {
		return s.MaxDelay
	}
	return time.Duration(delay)
}

// IsRetryable checks if another attempt is allowed after attemptCount attempts.
func (s Strategy) IsRetryable(attemptCount int) bool {
	return s.MaxAttempts <= 0 || attemptCount < s.MaxAttempts
}

// Wait sleeps for the delay of retry number retry. It returns ctx.Err() if
// the context ends first.
func (s Strategy) Wait(ctx context.Context, retry int) error {
	timer := time.NewTimer(s.CalculateRetryDelay(retry))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do runs op until it succeeds, the strategy gives up or ctx ends. onRetry,
// when set, is called before each wait with the failed attempt number
// (1-based) and its error. Do returns the last error of op, or ctx.Err().
func (s Strategy) Do(ctx context.Context, op func(ctx context.Context) error, onRetry func(attempt int, err error)) error {
	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !s.IsRetryable(attempt) {
			return err
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}
		if werr := s.Wait(ctx, attempt-1); werr != nil {
			return werr
		}
	}
}

// GetRetrySchedule returns a human-readable description of the schedule.
// Unlimited strategies list the first ten delays.
//
// Example output:
//
//	Retry Schedule:
//	  Retry 1: after 500ms
//	  Retry 2: after 1s
//	  ...
func (s Strategy) GetRetrySchedule() string {
	n := s.MaxAttempts - 1
	if s.MaxAttempts <= 0 {
		n = 10
	}

	var b strings.Builder
	b.WriteString("Retry Schedule:\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "  Retry %d: after %v\n", i+1, s.CalculateRetryDelay(i))
	}
	if s.MaxAttempts <= 0 {
		b.WriteString("  ... (unlimited)\n")
	}
	return b.String()
}
