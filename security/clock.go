package security

import "time"

// Clock supplies the current time. Components take a Clock so that window
// and expiry logic can be tested without sleeping.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock is the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

func clockOrDefault(c Clock) Clock {
	if c == nil {
		return SystemClock
	}
	return c
}
