package domain

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
)

// MaxExpansionDays bounds the date range a weekly expansion may cover.
const MaxExpansionDays = 62

type WindowOccurrence struct {
	WindowID   uuid.UUID
	ProviderID uuid.UUID
	Slot       Slot
}

// ExpandWeeklyWindows materializes the active windows on every date in [from, to],
// ordered by date and start time. Inactive windows are skipped.
func ExpandWeeklyWindows(windows []AvailabilityWindow, from, to time.Time) ([]WindowOccurrence, error) {
	from = DateOf(from)
	to = DateOf(to)
	if to.Before(from) {
		return nil, errors.New("range end must not be before range start")
	}
	if int(to.Sub(from)/(24*time.Hour)) >= MaxExpansionDays {
		return nil, errors.New("range too long")
	}

	byDay := make(map[DayOfWeek][]AvailabilityWindow, 7)
	for _, w := range windows {
		if !w.DayOfWeek.Valid() {
			return nil, errors.New("invalid weekday")
		}
		if !w.Active {
			continue
		}
		byDay[w.DayOfWeek] = append(byDay[w.DayOfWeek], w)
	}
	if len(byDay) == 0 {
		return nil, nil
	}
	for _, ws := range byDay {
		sort.Slice(ws, func(i, j int) bool { return ws[i].StartTime < ws[j].StartTime })
	}

	out := make([]WindowOccurrence, 0, 16)
	for weekStart := WeekStart(from); !weekStart.After(to); weekStart = weekStart.AddDate(0, 0, 7) {
		for day := Monday; day <= Sunday; day++ {
			date := weekStart.AddDate(0, 0, int(day))
			if date.Before(from) || date.After(to) {
				continue
			}
			for _, w := range byDay[day] {
				out = append(out, WindowOccurrence{
					WindowID:   w.ID,
					ProviderID: w.ProviderID,
					Slot:       Slot{Date: date, Start: w.StartTime, End: w.EndTime},
				})
			}
		}
	}
	return out, nil
}
