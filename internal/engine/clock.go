package engine

import "time"

// Clock supplies commit timestamps. Ordering never depends on it: sequence
// numbers come from the transaction log.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
