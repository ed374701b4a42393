// Package system provides the wall clock used outside tests.
package system

import "time"

// Clock implements verify.Clock. Times are reported in UTC so durations and
// persisted timestamps agree regardless of the host zone.
type Clock struct{}

// New returns a Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time.
func (*Clock) Now() time.Time {
	return time.Now().UTC()
}
