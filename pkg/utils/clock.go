package utils

import "time"

// SystemClock is the wall-clock implementation of the Clock port.
type SystemClock struct{}

// Now returns the current time
func (SystemClock) Now() time.Time {
	return time.Now()
}
