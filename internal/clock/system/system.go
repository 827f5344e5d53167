// Package system implements the crawler's Clock against the wall clock.
package system

import "time"

// Clock reports wall time in UTC. Snapshot and change timestamps are
// compared across backends, so everything is stamped in one zone.
type Clock struct{}

// New returns a Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
