// Package conflicts finds appointments that would collide with a candidate slot.
package conflicts

import (
	"context"
	"time"

	"github.com/google/uuid"

	"meetdesk/backend/internal/domain"
)

// ActiveLister returns a provider's pending and approved appointments on one date.
// Both the repository and a provider transaction satisfy it.
type ActiveLister interface {
	ListActive(ctx context.Context, providerID uuid.UUID, date time.Time) ([]domain.Appointment, error)
}

// RangeLister returns a provider's pending and approved appointments over [from, to].
type RangeLister interface {
	ListActiveBetween(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]domain.Appointment, error)
}

type Detector struct{}

func NewDetector() *Detector {
	return &Detector{}
}

// FindOverlaps returns every active appointment of providerID on date whose interval
// overlaps [start, end). excludeID, when not uuid.Nil, is left out.
func (d *Detector) FindOverlaps(ctx context.Context, src ActiveLister, providerID uuid.UUID, date time.Time, start, end domain.TimeOfDay, excludeID uuid.UUID) ([]domain.Appointment, error) {
	active, err := src.ListActive(ctx, providerID, domain.DateOf(date))
	if err != nil {
		return nil, err
	}
	return Overlapping(active, domain.Slot{Date: domain.DateOf(date), Start: start, End: end}, excludeID), nil
}

// Busy lists the slots held by active appointments of providerID over [from, to].
func (d *Detector) Busy(ctx context.Context, src RangeLister, providerID uuid.UUID, from, to time.Time) ([]domain.Slot, error) {
	active, err := src.ListActiveBetween(ctx, providerID, domain.DateOf(from), domain.DateOf(to))
	if err != nil {
		return nil, err
	}
	out := make([]domain.Slot, 0, len(active))
	for _, a := range active {
		if a.Status.Active() {
			out = append(out, a.Slot())
		}
	}
	return out, nil
}

func Overlapping(appts []domain.Appointment, slot domain.Slot, excludeID uuid.UUID) []domain.Appointment {
	var out []domain.Appointment
	for _, a := range appts {
		if excludeID != uuid.Nil && a.ID == excludeID {
			continue
		}
		if !a.Status.Active() {
			continue
		}
		if a.Slot().Overlaps(slot) {
			out = append(out, a)
		}
	}
	return out
}
