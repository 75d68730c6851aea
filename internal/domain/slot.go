package domain

import (
	"fmt"
	"time"
)

// Slot is a half-open [Start, End) interval on one calendar date.
type Slot struct {
	Date  time.Time
	Start TimeOfDay
	End   TimeOfDay
}

func (s Slot) Validate() error {
	if !s.Start.Valid() || !s.End.Valid() {
		return fmt.Errorf("%w: times must fall within the day", ErrInvalidRange)
	}
	if s.Start >= s.End {
		return fmt.Errorf("%w: end time must be after start time", ErrInvalidRange)
	}
	return nil
}

// Overlaps uses half-open semantics: slots that only touch at an endpoint do not overlap.
func (s Slot) Overlaps(o Slot) bool {
	if !s.Date.Equal(o.Date) {
		return false
	}
	return IntervalsOverlap(s.Start, s.End, o.Start, o.End)
}

// Contains reports whether o lies entirely within s on the same date.
func (s Slot) Contains(o Slot) bool {
	return s.Date.Equal(o.Date) && s.Start <= o.Start && o.End <= s.End
}

func (s Slot) String() string {
	return fmt.Sprintf("%s %s-%s", s.Date.Format(DateLayout), s.Start, s.End)
}

func IntervalsOverlap(aStart, aEnd, bStart, bEnd TimeOfDay) bool {
	return aStart < bEnd && aEnd > bStart
}

// Subtract removes every busy slot from free and returns the remaining pieces in order.
// Busy slots on other dates are ignored.
func Subtract(free Slot, busy []Slot) []Slot {
	pieces := []Slot{free}
	for _, b := range busy {
		if !b.Date.Equal(free.Date) {
			continue
		}
		next := pieces[:0:0]
		for _, p := range pieces {
			if !p.Overlaps(b) {
				next = append(next, p)
				continue
			}
			if p.Start < b.Start {
				next = append(next, Slot{Date: p.Date, Start: p.Start, End: b.Start})
			}
			if b.End < p.End {
				next = append(next, Slot{Date: p.Date, Start: b.End, End: p.End})
			}
		}
		pieces = next
	}
	return pieces
}
