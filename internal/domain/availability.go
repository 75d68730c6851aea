package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AvailabilityWindow is a provider's recurring weekly open interval.
type AvailabilityWindow struct {
	bun.BaseModel `bun:"table:availability_windows"`

	ID         uuid.UUID `bun:"id,pk,type:uuid"`
	ProviderID uuid.UUID `bun:"provider_id,notnull,type:uuid"`
	DayOfWeek  DayOfWeek `bun:"day_of_week,notnull"`
	StartTime  TimeOfDay `bun:"start_minute,notnull"`
	EndTime    TimeOfDay `bun:"end_minute,notnull"`
	Active     bool      `bun:"active,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
	UpdatedAt  time.Time `bun:"updated_at,notnull"`
}

func (w *AvailabilityWindow) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if w.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			w.ID = id
		}
		if w.CreatedAt.IsZero() {
			w.CreatedAt = now
		}
		if w.UpdatedAt.IsZero() {
			w.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		w.UpdatedAt = now
	}
	return nil
}

// SameRange reports whether w and o cover the identical interval on the same provider and day.
func (w AvailabilityWindow) SameRange(o AvailabilityWindow) bool {
	return w.ProviderID == o.ProviderID &&
		w.DayOfWeek == o.DayOfWeek &&
		w.StartTime == o.StartTime &&
		w.EndTime == o.EndTime
}

// On returns the window as a slot on date. ok is false when date falls on another weekday.
func (w AvailabilityWindow) On(date time.Time) (Slot, bool) {
	if WeekdayOf(date) != w.DayOfWeek {
		return Slot{}, false
	}
	return Slot{Date: DateOf(date), Start: w.StartTime, End: w.EndTime}, true
}
