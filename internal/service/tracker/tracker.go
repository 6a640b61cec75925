// Package tracker counts transaction submissions that are still in flight so
// the server can let them settle before it exits.
package tracker

import (
	"context"
	"sync/atomic"
	"time"
)

// Tracker counts running submissions using atomics.
type Tracker struct {
	running atomic.Int64
	total   atomic.Int64
}

// Inc records a submission start.
func (t *Tracker) Inc() {
	t.running.Add(1)
	t.total.Add(1)
}

// Dec records a submission end.
func (t *Tracker) Dec() { t.running.Add(-1) }

// Running returns the current running count.
func (t *Tracker) Running() int64 { return t.running.Load() }

// Total returns how many submissions were ever started.
func (t *Tracker) Total() int64 { return t.total.Load() }

// Drain blocks until nothing is running or ctx is done.
func (t *Tracker) Drain(ctx context.Context) error {
	tick := time.NewTicker(5 * time.Millisecond)
	defer tick.Stop()

	for t.Running() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
	return nil
}
