// Package clock provides the time source for cutoff and age calculations.
// Services never call time.Now directly; the boundary tests for the 24-hour
// cancellation window need a pinned now().
package clock

import "time"

// Clock yields the current time in the clinic's local time zone.
type Clock interface {
	Now() time.Time
}

// Real reads the system clock in the given location.
type Real struct {
	Loc *time.Location
}

func (r Real) Now() time.Time {
	if r.Loc == nil {
		return time.Now()
	}
	return time.Now().In(r.Loc)
}

// Fixed always returns the same instant.
type Fixed struct {
	T time.Time
}

func (f Fixed) Now() time.Time { return f.T }
