// Package telematics provides access to recorded vehicle runs: the actual
// start/end window of a route and the GPS track driven within it.
package telematics

import (
	"errors"
	"time"
)

// Repository errors.
var (
	// ErrWindowNotFound means no telematics run is recorded for the
	// vehicle/alias/day. A normal outcome, not a data-access failure.
	ErrWindowNotFound = errors.New("no telematics window recorded")
)

// Window is the actual start/end of a recorded run.
type Window struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether the window is well-formed.
func (w Window) Valid() bool {
	return w.Start.Before(w.End)
}

// Contains reports whether t falls within the window, inclusive.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// TrackPoint is one recorded GPS fix.
type TrackPoint struct {
	Lat       float64
	Lon       float64
	Timestamp time.Time
	Speed     float64
}
