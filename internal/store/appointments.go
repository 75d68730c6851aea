package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"meetdesk/backend/internal/domain"
)

// AppointmentFilter scopes a listing to one owner. Exactly one of CustomerID and
// ProviderID is set.
type AppointmentFilter struct {
	CustomerID uuid.UUID
	ProviderID uuid.UUID
	Status     *domain.Status
}

// Cursor is the keyset position of the last row of a page ordered by
// (date DESC, start DESC, id DESC).
type Cursor struct {
	Date      time.Time
	StartTime domain.TimeOfDay
	ID        uuid.UUID
}

func CursorOf(a domain.Appointment) *Cursor {
	return &Cursor{Date: a.Date, StartTime: a.StartTime, ID: a.ID}
}

// Includes reports whether a sorts after the cursor position and so belongs to the next page.
func (c *Cursor) Includes(a domain.Appointment) bool {
	if c == nil {
		return true
	}
	if !a.Date.Equal(c.Date) {
		return a.Date.Before(c.Date)
	}
	if a.StartTime != c.StartTime {
		return a.StartTime < c.StartTime
	}
	return a.ID.String() < c.ID.String()
}

type AppointmentRepository interface {
	Get(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error)
	ListPage(ctx context.Context, filter AppointmentFilter, after *Cursor, limit int) ([]domain.Appointment, error)
	ListActive(ctx context.Context, providerID uuid.UUID, date time.Time) ([]domain.Appointment, error)
	ListActiveBetween(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]domain.Appointment, error)

	// InProviderTransaction runs fn with every write for providerID serialized
	// against other calls for the same provider. Writes made through tx are
	// applied only when fn returns nil.
	InProviderTransaction(ctx context.Context, providerID uuid.UUID, fn func(ctx context.Context, tx ProviderTx) error) error
}

// ProviderTx is the view of one provider's appointments inside InProviderTransaction.
type ProviderTx interface {
	GetAppointment(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error)
	ListActive(ctx context.Context, providerID uuid.UUID, date time.Time) ([]domain.Appointment, error)
	CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	UpdateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
}
