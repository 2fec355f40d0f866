// Package clock provides the monotonic time source used for protocol pacing
// and timeouts. Tests swap in a Manual clock to simulate elapsed time.
package clock

import "time"

// Clock reports the current time. Only differences between readings are
// meaningful to callers.
type Clock interface {
	Now() time.Time
}

// System reads the runtime's monotonic clock.
type System struct{}

// Now returns time.Now().
func (System) Now() time.Time {
	return time.Now()
}

// Manual is a clock that only moves when told to.
type Manual struct {
	now time.Time
}

// NewManual creates a manual clock starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the current manual time.
func (m *Manual) Now() time.Time {
	return m.now
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.now = m.now.Add(d)
}
