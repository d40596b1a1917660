package timelock

import "time"

// Clock abstracts wall-clock time so the delay window can be driven
// deterministically in tests. The timelock is wall-clock based: it is not
// tied to any in-flight call and has no effect on already-dispatched
// calls.
type Clock interface {
	Now() time.Time
}

// WallClock is the production clock.
type WallClock struct{}

// Now returns the current wall-clock time.
func (WallClock) Now() time.Time {
	return time.Now()
}
