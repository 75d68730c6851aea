package clock

import (
	"time"

	"meetdesk/backend/internal/domain"
)

// Clock supplies the current instant. Bookings compare dates in the clock's location.
type Clock interface {
	Now() time.Time
}

type System struct {
	loc *time.Location
}

func NewSystem(loc *time.Location) System {
	if loc == nil {
		loc = time.UTC
	}
	return System{loc: loc}
}

func (s System) Now() time.Time {
	return time.Now().In(s.loc)
}

// Fixed always reports the same instant.
type Fixed struct {
	At time.Time
}

func (f Fixed) Now() time.Time { return f.At }

// Today is the current calendar date in c's location, as a UTC midnight value.
func Today(c Clock) time.Time {
	return domain.DateOf(c.Now())
}

func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}
