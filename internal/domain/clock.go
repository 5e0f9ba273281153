package domain

import "time"

// Clock is the single ledger clock for all deadline and window comparisons.
// Every component reads the same injected instance so participants agree on
// ordering relative to deadlines and dispute windows.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the operating system clock.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time { return time.Now() }
