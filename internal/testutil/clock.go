// Package testutil holds shared test doubles: a virtual clock for
// driving the auto-send scheduler and a scripted HTTP transport for
// exercising the delivery engine without a network.
package testutil

import (
	"sort"
	"sync"
	"time"

	"github.com/lumastack/routelog/internal/schedule"
)

// VirtualClock is a schedule.Clock under manual control. Advance moves
// time forward and fires every timer that became due, in due order, on
// the calling goroutine.
//
// Thread-safety: all methods are safe for concurrent use, but timer
// callbacks run with no lock held.
type VirtualClock struct {
	mu     sync.Mutex
	now    time.Time
	nextID int
	timers map[int]*virtualTimer
}

// NewVirtualClock starts a clock at the given instant.
func NewVirtualClock(start time.Time) *VirtualClock {
	return &VirtualClock{now: start, timers: make(map[int]*virtualTimer)}
}

// Now returns the current virtual time.
func (c *VirtualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc registers f to fire once the clock advances past d from
// now. d <= 0 still waits for the next Advance; nothing fires inline.
func (c *VirtualClock) AfterFunc(d time.Duration, f func()) schedule.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	t := &virtualTimer{clock: c, id: c.nextID, at: c.now.Add(d), f: f}
	c.timers[t.id] = t
	return t
}

// Advance moves the clock forward by d and fires due timers in
// chronological order. Callbacks may register new timers; those fire
// too when they fall within the advanced window.
func (c *VirtualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		t := c.popDueLocked(target)
		if t == nil {
			break
		}
		if t.at.After(c.now) {
			c.now = t.at
		}
		c.mu.Unlock()
		t.f()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

// Set jumps the clock to a specific instant, firing due timers.
func (c *VirtualClock) Set(at time.Time) {
	c.mu.Lock()
	d := at.Sub(c.now)
	c.mu.Unlock()
	if d < 0 {
		panic("testutil: VirtualClock cannot move backwards")
	}
	c.Advance(d)
}

// Pending returns how many timers are armed.
func (c *VirtualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

func (c *VirtualClock) popDueLocked(target time.Time) *virtualTimer {
	due := make([]*virtualTimer, 0, len(c.timers))
	for _, t := range c.timers {
		if !t.at.After(target) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].at.Equal(due[j].at) {
			return due[i].id < due[j].id
		}
		return due[i].at.Before(due[j].at)
	})
	t := due[0]
	delete(c.timers, t.id)
	return t
}

type virtualTimer struct {
	clock *VirtualClock
	id    int
	at    time.Time
	f     func()
}

func (t *virtualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	_, armed := t.clock.timers[t.id]
	delete(t.clock.timers, t.id)
	return armed
}
