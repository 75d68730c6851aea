package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID         uuid.UUID `bun:"id,pk,type:uuid"`
	CustomerID uuid.UUID `bun:"customer_id,notnull,type:uuid"`
	ProviderID uuid.UUID `bun:"provider_id,notnull,type:uuid"`
	Date       time.Time `bun:"date,notnull,type:date"`
	StartTime  TimeOfDay `bun:"start_minute,notnull"`
	EndTime    TimeOfDay `bun:"end_minute,notnull"`
	Purpose    string    `bun:"purpose,notnull"`
	Status     Status    `bun:"status,notnull"`
	Notes      string    `bun:"notes,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
	UpdatedAt  time.Time `bun:"updated_at,notnull"`
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}

func (a Appointment) Slot() Slot {
	return Slot{Date: a.Date, Start: a.StartTime, End: a.EndTime}
}

// SameBooking reports whether b carries the booking request that produced a.
func (a Appointment) SameBooking(b Appointment) bool {
	return a.CustomerID == b.CustomerID &&
		a.ProviderID == b.ProviderID &&
		a.Date.Equal(b.Date) &&
		a.StartTime == b.StartTime &&
		a.EndTime == b.EndTime &&
		a.Purpose == b.Purpose
}
