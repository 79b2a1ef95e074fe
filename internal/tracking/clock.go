package tracking

import "time"

// Clock abstracts wall time so sessions can be driven deterministically in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the real wall clock
func SystemClock() Clock { return systemClock{} }

// SessionClock tracks elapsed and active time for one session.
// The zero value is a clock that has not been started.
type SessionClock struct {
	start      time.Time
	pauseStart time.Time // zero while running
	totalPause time.Duration
}

// Start resets the clock to begin at now
func (c *SessionClock) Start(now time.Time) {
	*c = SessionClock{start: now}
}

// Restore rebuilds a clock from persisted values. A non-zero pauseStart
// leaves the clock paused.
func (c *SessionClock) Restore(start time.Time, totalPause time.Duration, pauseStart time.Time) {
	if totalPause < 0 {
		totalPause = 0
	}
	*c = SessionClock{start: start, totalPause: totalPause, pauseStart: pauseStart}
}

// Pause opens a pause interval. Returns false if already paused.
func (c *SessionClock) Pause(now time.Time) bool {
	if c.Paused() {
		return false
	}
	c.pauseStart = now
	return true
}

// Resume closes the open pause interval and returns its duration
func (c *SessionClock) Resume(now time.Time) time.Duration {
	if !c.Paused() {
		return 0
	}
	d := now.Sub(c.pauseStart)
	if d < 0 {
		d = 0
	}
	c.totalPause += d
	c.pauseStart = time.Time{}
	return d
}

// Paused reports whether a pause interval is open
func (c *SessionClock) Paused() bool { return !c.pauseStart.IsZero() }

// StartTime returns when the session began
func (c *SessionClock) StartTime() time.Time { return c.start }

// PauseStart returns when the open pause began, zero if running
func (c *SessionClock) PauseStart() time.Time { return c.pauseStart }

// TotalPause returns the sum of completed pause intervals
func (c *SessionClock) TotalPause() time.Duration { return c.totalPause }

// PausedFor returns completed pauses plus the open one as of now
func (c *SessionClock) PausedFor(now time.Time) time.Duration {
	total := c.totalPause
	if c.Paused() {
		if open := now.Sub(c.pauseStart); open > 0 {
			total += open
		}
	}
	return total
}

// Elapsed is wall time since start, pauses included
func (c *SessionClock) Elapsed(now time.Time) time.Duration {
	if c.start.IsZero() {
		return 0
	}
	return max(now.Sub(c.start), 0)
}

// Active is elapsed time minus all paused time, never negative
func (c *SessionClock) Active(now time.Time) time.Duration {
	return max(c.Elapsed(now)-c.PausedFor(now), 0)
}
