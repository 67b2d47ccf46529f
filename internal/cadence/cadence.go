package cadence

import (
	"fmt"
	"time"
)

// Controller decides when the next sample is due. It owns the reference
// time exclusively; the main loop is the only caller.
//
// Firing resets the reference to the firing instant, not to a computed
// next boundary. Drift therefore never compounds, and a stall of many
// intervals yields exactly one sample when the loop comes back, never a
// burst of catch-up samples.
type Controller struct {
	interval time.Duration
	last     time.Time
}

// New builds a Controller firing perMinute times per minute, with the
// reference set to start so the first sample is due one interval later.
func New(perMinute float64, start time.Time) (*Controller, error) {
	if perMinute <= 0 {
		return nil, fmt.Errorf("cadence: measurements per minute must be positive, got %v", perMinute)
	}
	return &Controller{
		interval: time.Duration(float64(time.Minute) / perMinute),
		last:     start,
	}, nil
}

// Interval returns the configured sampling interval.
func (c *Controller) Interval() time.Duration {
	return c.interval
}

// ShouldSample reports whether a sample is due at now and, if so, moves
// the reference to now. It never fires more than once per call.
func (c *Controller) ShouldSample(now time.Time) bool {
	if now.Sub(c.last) < c.interval {
		return false
	}
	c.last = now
	return true
}

// Progress returns how far through the current interval the clock is,
// in [0, 1]. Saturates at 1 when a sample is overdue.
func (c *Controller) Progress(now time.Time) float64 {
	elapsed := now.Sub(c.last)
	if elapsed <= 0 {
		return 0
	}
	p := float64(elapsed) / float64(c.interval)
	if p > 1 {
		return 1
	}
	return p
}

// NextAligned returns the first instant at or after now whose wall-clock
// minute is a multiple of everyMinutes. This is the one-time startup gate;
// steady-state cadence ignores wall-clock alignment entirely.
func NextAligned(now time.Time, everyMinutes int) time.Time {
	if everyMinutes <= 0 || now.Minute()%everyMinutes == 0 {
		return now
	}
	t := now.Truncate(time.Minute)
	for {
		t = t.Add(time.Minute)
		if t.Minute()%everyMinutes == 0 {
			return t
		}
	}
}
