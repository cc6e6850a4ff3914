package clock

import "time"

// Clock provides the current time in the business time zone
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock and converts it into Location
type SystemClock struct {
	Location *time.Location
}

// New returns a SystemClock for the named zone, falling back to UTC
func New(zone string) SystemClock {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		loc = time.UTC
	}
	return SystemClock{Location: loc}
}

func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now().UTC()
	}
	return time.Now().In(c.Location)
}

// Fixed always returns the same instant. Used by tests and backfills.
type Fixed time.Time

func (f Fixed) Now() time.Time { return time.Time(f) }
