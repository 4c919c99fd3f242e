package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock is a package-level time source so tests can freeze time via SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Now returns the current time from the package clock.
func Now() time.Time {
	return clock.Now()
}

// Since reports the time elapsed since t on the package clock.
func Since(t time.Time) time.Duration {
	return clock.Since(t)
}

// DefaultStart returns the current UTC time truncated to the interval, used
// when no start date is given. UTC keeps wall-clock spacing free of DST jumps.
func DefaultStart(interval time.Duration) time.Time {
	now := clock.Now().UTC()
	if interval <= 0 {
		return now.Truncate(time.Minute)
	}
	return now.Truncate(interval)
}
