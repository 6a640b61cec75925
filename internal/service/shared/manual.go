package shared

import (
	"sort"
	"sync"
	"time"
)

// ManualClock is a Clock advanced explicitly with Advance.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	nextID int
	timers map[int]manualTimer
}

type manualTimer struct {
	at time.Time
	f  func()
}

// NewManualClock returns a ManualClock reading start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start, timers: make(map[int]manualTimer)}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) AfterFunc(d time.Duration, f func()) func() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.timers[id] = manualTimer{at: c.now.Add(d), f: f}

	return func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		_, pending := c.timers[id]
		delete(c.timers, id)
		return pending
	}
}

// Advance moves the clock forward and runs, in deadline order, every timer
// that became due. Callbacks run on the caller's goroutine without the
// clock's lock held.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now

	type due struct {
		id int
		manualTimer
	}
	var fire []due
	for id, tm := range c.timers {
		if !tm.at.After(now) {
			fire = append(fire, due{id, tm})
			delete(c.timers, id)
		}
	}
	c.mu.Unlock()

	sort.Slice(fire, func(i, j int) bool {
		if fire[i].at.Equal(fire[j].at) {
			return fire[i].id < fire[j].id
		}
		return fire[i].at.Before(fire[j].at)
	})
	for _, tm := range fire {
		tm.f()
	}
}

// Pending returns the number of timers not yet fired or stopped.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}
