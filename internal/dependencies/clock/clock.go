package clock

import "time"

// Clock is the time source for session creation stamps and ids
type Clock interface {
	Now() time.Time
}

// System reads the wall clock
type System struct{}

// New returns the wall clock
func New() System {
	return System{}
}

// Now returns the current time in UTC
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Millis is the clock's current Unix time in milliseconds
func Millis(c Clock) int64 {
	return c.Now().UnixMilli()
}
