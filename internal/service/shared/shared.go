// Package shared provides the delay, sleep and clock helpers used by the
// payment steps.
package shared

import (
	"context"
	"time"
)

// DurationOr returns d when positive, otherwise def.
func DurationOr(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

// SleepOrDone waits for the duration or returns early on context cancellation.
func SleepOrDone(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Clock is the time source of the timed UI effects (PIN shake, celebration,
// progress). Tests substitute a manual clock.
type Clock interface {
	Now() time.Time
	// AfterFunc runs f once d has elapsed and returns a stop function.
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

// RealClock is the wall clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// ClockOr returns c, or RealClock when c is nil.
func ClockOr(c Clock) Clock {
	if c == nil {
		return RealClock{}
	}
	return c
}
