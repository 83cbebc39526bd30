// Package ratelimit tracks per-provider call budgets over fixed windows.
package ratelimit

import (
	"sync"
	"time"
)

// Tracker answers "can this provider make one more call right now?" and
// records calls. It never blocks: callers decide whether to skip a provider
// once a budget is exhausted.
//
// Windows are fixed, not sliding. The minute window advances by whole
// minutes from the first observed call, so callers may see brief bursts
// across a boundary (up to 2x the nominal per-minute rate). The day window
// resets at UTC midnight.
type Tracker struct {
	mu sync.Mutex

	maxPerMinute int
	maxPerDay    int

	minuteCount   int
	dayCount      int
	minuteResetAt time.Time
	dayResetAt    time.Time

	now func() time.Time
}

// NewTracker creates a tracker with the given budgets. Non-positive budgets
// are treated as unlimited.
func NewTracker(maxPerMinute, maxPerDay int) *Tracker {
	return &Tracker{
		maxPerMinute: maxPerMinute,
		maxPerDay:    maxPerDay,
		now:          time.Now,
	}
}

// NewTrackerWithClock creates a tracker using an injected clock.
func NewTrackerWithClock(maxPerMinute, maxPerDay int, now func() time.Time) *Tracker {
	t := NewTracker(maxPerMinute, maxPerDay)
	t.now = now
	return t
}

// rollover resets any expired window. Caller must hold mu.
func (t *Tracker) rollover(now time.Time) {
	if t.minuteResetAt.IsZero() {
		t.minuteResetAt = now.Add(time.Minute)
	} else if !now.Before(t.minuteResetAt) {
		// Advance by whole minutes rather than resetting to now+1m,
		// keeping the window a simple reset-to-zero tick.
		for !now.Before(t.minuteResetAt) {
			t.minuteResetAt = t.minuteResetAt.Add(time.Minute)
		}
		t.minuteCount = 0
	}

	if t.dayResetAt.IsZero() {
		t.dayResetAt = nextUTCMidnight(now)
	} else if !now.Before(t.dayResetAt) {
		t.dayResetAt = nextUTCMidnight(now)
		t.dayCount = 0
	}
}

func nextUTCMidnight(now time.Time) time.Time {
	u := now.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}

// CanMakeCall reports whether both windows have remaining budget.
func (t *Tracker) CanMakeCall() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollover(t.now())

	if t.maxPerMinute > 0 && t.minuteCount >= t.maxPerMinute {
		return false
	}
	if t.maxPerDay > 0 && t.dayCount >= t.maxPerDay {
		return false
	}
	return true
}

// RecordCall counts one upstream request attempt. Call it immediately
// before the request; the attempt is counted whether or not it succeeds.
func (t *Tracker) RecordCall() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollover(t.now())
	t.minuteCount++
	t.dayCount++
}

// Remaining returns the remaining minute and day budgets.
func (t *Tracker) Remaining() (minute, day int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollover(t.now())

	minute = t.maxPerMinute - t.minuteCount
	if t.maxPerMinute <= 0 {
		minute = -1
	} else if minute < 0 {
		minute = 0
	}
	day = t.maxPerDay - t.dayCount
	if t.maxPerDay <= 0 {
		day = -1
	} else if day < 0 {
		day = 0
	}
	return minute, day
}

// Stats returns current usage and limits for diagnostics.
func (t *Tracker) Stats() (minuteUsed, dayUsed, maxPerMinute, maxPerDay int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollover(t.now())
	return t.minuteCount, t.dayCount, t.maxPerMinute, t.maxPerDay
}
