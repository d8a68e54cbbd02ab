// Package timeutil abstracts wall-clock time for event-log timestamps, task
// timeouts and fixture replay pacing, so those paths can run against a
// manually advanced clock in tests and offline replays.
package timeutil

import (
	"sync"
	"time"
)

// Clock is the subset of the time package the session and feeds use.
type Clock interface {
	Now() time.Time
	// AfterFunc calls f once d has elapsed. RealClock runs f on its own
	// goroutine; MockClock runs it from Advance.
	AfterFunc(d time.Duration, f func()) Timer
	NewTicker(d time.Duration) Ticker
}

// Timer is a pending AfterFunc call.
type Timer interface {
	// Stop cancels the call and reports whether it was still pending.
	Stop() bool
}

// Ticker delivers the time at a fixed period.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// RealClock is backed by the time package.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

func (RealClock) NewTicker(d time.Duration) Ticker { return realTicker{time.NewTicker(d)} }

type realTicker struct{ *time.Ticker }

func (t realTicker) C() <-chan time.Time { return t.Ticker.C }

// MockClock only moves when Advance is called. Timers and ticks fire in
// deadline order, and Now reports each deadline while its callback runs.
type MockClock struct {
	mu      sync.Mutex
	now     time.Time
	pending []*scheduled
}

// scheduled is a one-shot timer (period zero) or a ticker.
type scheduled struct {
	clock  *MockClock
	when   time.Time
	period time.Duration
	fn     func()
	ch     chan time.Time
}

// NewMockClock returns a clock reading start.
func NewMockClock(start time.Time) *MockClock {
	return &MockClock{now: start}
}

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d, firing everything that falls due on
// the way. Timer callbacks run on the caller's goroutine without the clock
// lock held, so they may schedule or stop other timers.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		next := c.nextDueLocked(target)
		if next == nil {
			break
		}
		c.now = next.when
		if next.period > 0 {
			select {
			case next.ch <- next.when:
			default:
			}
			next.when = next.when.Add(next.period)
			continue
		}
		c.removeLocked(next)
		c.mu.Unlock()
		next.fn()
		c.mu.Lock()
	}
	if target.After(c.now) {
		c.now = target
	}
	c.mu.Unlock()
}

// nextDueLocked returns the earliest entry due by target. Entries with the
// same deadline fire in the order they were scheduled.
func (c *MockClock) nextDueLocked(target time.Time) *scheduled {
	var next *scheduled
	for _, s := range c.pending {
		if s.when.After(target) {
			continue
		}
		if next == nil || s.when.Before(next.when) {
			next = s
		}
	}
	return next
}

func (c *MockClock) removeLocked(s *scheduled) bool {
	for i, p := range c.pending {
		if p == s {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return true
		}
	}
	return false
}

func (c *MockClock) schedule(d time.Duration, s *scheduled) *scheduled {
	c.mu.Lock()
	defer c.mu.Unlock()
	s.clock = c
	s.when = c.now.Add(d)
	c.pending = append(c.pending, s)
	return s
}

func (c *MockClock) AfterFunc(d time.Duration, f func()) Timer {
	return c.schedule(d, &scheduled{fn: f})
}

// NewTicker panics on a non-positive period, like time.NewTicker.
func (c *MockClock) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("timeutil: non-positive interval for NewTicker")
	}
	return mockTicker{c.schedule(d, &scheduled{period: d, ch: make(chan time.Time, 1)})}
}

// PendingTimers counts AfterFunc calls that have neither fired nor been
// stopped. Tickers are not included.
func (c *MockClock) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, s := range c.pending {
		if s.period == 0 {
			n++
		}
	}
	return n
}

func (s *scheduled) Stop() bool {
	s.clock.mu.Lock()
	defer s.clock.mu.Unlock()
	return s.clock.removeLocked(s)
}

type mockTicker struct{ s *scheduled }

func (t mockTicker) C() <-chan time.Time { return t.s.ch }
func (t mockTicker) Stop()               { t.s.Stop() }
