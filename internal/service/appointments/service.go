// Package appointments owns the appointment lifecycle: validation, overlap
// checks and status transitions, each applied atomically per provider.
package appointments

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"meetdesk/backend/internal/clock"
	"meetdesk/backend/internal/domain"
	"meetdesk/backend/internal/service/conflicts"
	"meetdesk/backend/internal/store"
)

type ValidationError = domain.ValidationError

func validationError(msg string) error {
	return domain.NewValidationError(msg)
}

const (
	defaultPageSize   = 50
	maxIdempotencyKey = 256
	summaryListSize   = 5
)

// AvailabilityChecker answers whether a slot lies inside a provider's declared windows.
type AvailabilityChecker interface {
	IsWithinAvailability(ctx context.Context, providerID uuid.UUID, date time.Time, start, end domain.TimeOfDay) (bool, error)
}

type Options struct {
	// EnforceAvailability rejects bookings outside every active window with
	// domain.ErrOutsideAvailability.
	EnforceAvailability bool
	PageSize            int
}

type Service struct {
	repo         store.AppointmentRepository
	availability AvailabilityChecker
	detector     *conflicts.Detector
	clock        clock.Clock
	opts         Options
	logger       *slog.Logger
}

func NewService(repo store.AppointmentRepository, availability AvailabilityChecker, clk clock.Clock, opts Options, logger *slog.Logger) *Service {
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if clk == nil {
		clk = clock.NewSystem(time.UTC)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:         repo,
		availability: availability,
		detector:     conflicts.NewDetector(),
		clock:        clk,
		opts:         opts,
		logger:       logger.With("component", "appointments"),
	}
}

type CreateInput struct {
	ProviderID     uuid.UUID
	Date           time.Time
	Start          domain.TimeOfDay
	End            domain.TimeOfDay
	Purpose        string
	Notes          string
	IdempotencyKey string
}

// Create books a pending appointment for the acting customer.
func (s *Service) Create(ctx context.Context, actor domain.Actor, in CreateInput) (domain.Appointment, error) {
	a, _, err := s.Book(ctx, actor, in)
	return a, err
}

// Book is Create that also reports whether the idempotency key matched an earlier
// booking, in which case the stored appointment is returned and nothing is written.
func (s *Service) Book(ctx context.Context, actor domain.Actor, in CreateInput) (appt domain.Appointment, replayed bool, err error) {
	if !actor.IsCustomer() || !actor.Valid() {
		return domain.Appointment{}, false, fmt.Errorf("%w: only customers book appointments", domain.ErrForbidden)
	}
	if in.ProviderID == uuid.Nil {
		return domain.Appointment{}, false, validationError("provider_id is required")
	}
	purpose := strings.TrimSpace(in.Purpose)
	if purpose == "" {
		return domain.Appointment{}, false, validationError("purpose is required")
	}

	slot := domain.Slot{Date: domain.DateOf(in.Date), Start: in.Start, End: in.End}
	if err := s.validateSlot(slot); err != nil {
		return domain.Appointment{}, false, err
	}

	appt = domain.Appointment{
		CustomerID: actor.ProfileID(),
		ProviderID: in.ProviderID,
		Date:       slot.Date,
		StartTime:  slot.Start,
		EndTime:    slot.End,
		Purpose:    purpose,
		Status:     domain.StatusPending,
		Notes:      strings.TrimSpace(in.Notes),
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		if len(key) > maxIdempotencyKey {
			return domain.Appointment{}, false, validationError("idempotency_key too long")
		}
		appt.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("meetdesk:book:"+actor.ProfileID().String()+":"+key))
	}

	var created domain.Appointment
	err = s.repo.InProviderTransaction(ctx, in.ProviderID, func(ctx context.Context, tx store.ProviderTx) error {
		replayed = false
		if appt.ID != uuid.Nil {
			existing, err := tx.GetAppointment(ctx, appt.ID)
			switch {
			case err == nil:
				if !existing.SameBooking(appt) {
					return store.ErrIdempotencyConflict
				}
				created = existing
				replayed = true
				return nil
			case !errors.Is(err, store.ErrNotFound):
				return err
			}
		}

		if err := s.checkSlot(ctx, tx, in.ProviderID, slot, uuid.Nil); err != nil {
			return err
		}
		var err error
		created, err = tx.CreateAppointment(ctx, appt)
		return err
	})
	if err != nil {
		return domain.Appointment{}, false, translateStoreError(err)
	}

	if replayed {
		s.logger.InfoContext(ctx, "booking replayed", "appointment_id", created.ID, "provider_id", created.ProviderID)
		return created, true, nil
	}
	s.logger.InfoContext(ctx, "appointment booked", "appointment_id", created.ID, "provider_id", created.ProviderID, "slot", created.Slot().String())
	return created, false, nil
}

type RescheduleInput struct {
	Date  time.Time
	Start domain.TimeOfDay
	End   domain.TimeOfDay
}

// Reschedule moves an active appointment to a new slot and resets it to pending.
func (s *Service) Reschedule(ctx context.Context, actor domain.Actor, appointmentID uuid.UUID, in RescheduleInput) (domain.Appointment, error) {
	current, err := s.load(ctx, appointmentID)
	if err != nil {
		return domain.Appointment{}, err
	}
	if !actor.Owns(current) {
		return domain.Appointment{}, fmt.Errorf("%w: not your appointment", domain.ErrForbidden)
	}
	if !actor.IsCustomer() {
		return domain.Appointment{}, fmt.Errorf("%w: only the customer may reschedule", domain.ErrForbidden)
	}
	if err := domain.CheckReschedule(current.Status); err != nil {
		return domain.Appointment{}, err
	}

	slot := domain.Slot{Date: domain.DateOf(in.Date), Start: in.Start, End: in.End}
	if err := s.validateSlot(slot); err != nil {
		return domain.Appointment{}, err
	}

	var updated domain.Appointment
	err = s.repo.InProviderTransaction(ctx, current.ProviderID, func(ctx context.Context, tx store.ProviderTx) error {
		cur, err := tx.GetAppointment(ctx, appointmentID)
		if err != nil {
			return err
		}
		if err := domain.CheckReschedule(cur.Status); err != nil {
			return err
		}
		if err := s.checkSlot(ctx, tx, cur.ProviderID, slot, cur.ID); err != nil {
			return err
		}

		cur.Date = slot.Date
		cur.StartTime = slot.Start
		cur.EndTime = slot.End
		cur.Status = domain.StatusPending
		updated, err = tx.UpdateAppointment(ctx, cur)
		return err
	})
	if err != nil {
		return domain.Appointment{}, translateStoreError(err)
	}

	s.logger.InfoContext(ctx, "appointment rescheduled", "appointment_id", updated.ID, "slot", updated.Slot().String())
	return updated, nil
}

type TransitionInput struct {
	Target domain.Status
	// Notes replaces the appointment notes when set. Only providers may annotate.
	Notes *string
}

// Transition applies a lifecycle action. Checks run in order: existence,
// ownership, role, then the state machine.
func (s *Service) Transition(ctx context.Context, actor domain.Actor, appointmentID uuid.UUID, in TransitionInput) (domain.Appointment, error) {
	current, err := s.load(ctx, appointmentID)
	if err != nil {
		return domain.Appointment{}, err
	}
	if !actor.Owns(current) {
		return domain.Appointment{}, fmt.Errorf("%w: not your appointment", domain.ErrForbidden)
	}
	if role, ok := domain.RoleFor(in.Target); ok && role != actor.Role() {
		return domain.Appointment{}, fmt.Errorf("%w: only the %s may mark an appointment %s", domain.ErrForbidden, role, in.Target)
	}
	if err := domain.CheckTransition(current.Status, in.Target); err != nil {
		return domain.Appointment{}, err
	}
	if in.Notes != nil && !actor.IsProvider() {
		return domain.Appointment{}, fmt.Errorf("%w: only providers annotate appointments", domain.ErrForbidden)
	}

	var updated domain.Appointment
	err = s.repo.InProviderTransaction(ctx, current.ProviderID, func(ctx context.Context, tx store.ProviderTx) error {
		cur, err := tx.GetAppointment(ctx, appointmentID)
		if err != nil {
			return err
		}
		if err := domain.CheckTransition(cur.Status, in.Target); err != nil {
			return err
		}
		cur.Status = in.Target
		if in.Notes != nil {
			cur.Notes = strings.TrimSpace(*in.Notes)
		}
		updated, err = tx.UpdateAppointment(ctx, cur)
		return err
	})
	if err != nil {
		return domain.Appointment{}, translateStoreError(err)
	}

	s.logger.InfoContext(ctx, "appointment transitioned", "appointment_id", updated.ID, "from", current.Status, "to", updated.Status, "actor", actor.String())
	return updated, nil
}

// Get returns an appointment the actor owns. Appointments of others read as not found.
func (s *Service) Get(ctx context.Context, actor domain.Actor, appointmentID uuid.UUID) (domain.Appointment, error) {
	a, err := s.load(ctx, appointmentID)
	if err != nil {
		return domain.Appointment{}, err
	}
	if !actor.Owns(a) {
		return domain.Appointment{}, domain.ErrNotFound
	}
	return a, nil
}

// List yields the actor's appointments newest first, optionally restricted to one
// status. Pages are fetched as the caller ranges; ranging again starts over.
func (s *Service) List(ctx context.Context, actor domain.Actor, status *domain.Status) iter.Seq2[domain.Appointment, error] {
	return func(yield func(domain.Appointment, error) bool) {
		if !actor.Valid() {
			yield(domain.Appointment{}, fmt.Errorf("%w: unknown actor", domain.ErrForbidden))
			return
		}
		filter := store.AppointmentFilter{Status: status}
		if actor.IsCustomer() {
			filter.CustomerID = actor.ProfileID()
		} else {
			filter.ProviderID = actor.ProfileID()
		}

		var after *store.Cursor
		for {
			page, err := s.repo.ListPage(ctx, filter, after, s.opts.PageSize)
			if err != nil {
				yield(domain.Appointment{}, err)
				return
			}
			for _, a := range page {
				if !yield(a, nil) {
					return
				}
			}
			if len(page) < s.opts.PageSize {
				return
			}
			after = store.CursorOf(page[len(page)-1])
		}
	}
}

// Summary holds dashboard counters. Pending and ThisWeek are filled for providers,
// Past for customers.
type Summary struct {
	Role     domain.Role
	Total    int
	Pending  int
	ThisWeek int
	Upcoming []domain.Appointment
	Past     []domain.Appointment
}

func (s *Service) Summary(ctx context.Context, actor domain.Actor) (Summary, error) {
	today := clock.Today(s.clock)
	weekStart := domain.WeekStart(today)
	weekEnd := weekStart.AddDate(0, 0, 6)

	sum := Summary{Role: actor.Role()}
	var upcoming []domain.Appointment
	for a, err := range s.List(ctx, actor, nil) {
		if err != nil {
			return Summary{}, err
		}
		sum.Total++

		if actor.IsProvider() {
			if a.Status == domain.StatusPending {
				sum.Pending++
			}
			if !a.Date.Before(weekStart) && !a.Date.After(weekEnd) {
				sum.ThisWeek++
			}
			if a.Status == domain.StatusApproved && !a.Date.Before(today) {
				upcoming = append(upcoming, a)
			}
			continue
		}

		if a.Status.Active() && !a.Date.Before(today) {
			upcoming = append(upcoming, a)
		}
		if a.Date.Before(today) && len(sum.Past) < summaryListSize {
			sum.Past = append(sum.Past, a)
		}
	}

	// Rows arrive newest first, so the soonest upcoming ones are at the tail.
	if len(upcoming) > summaryListSize {
		upcoming = upcoming[len(upcoming)-summaryListSize:]
	}
	for i, j := 0, len(upcoming)-1; i < j; i, j = i+1, j-1 {
		upcoming[i], upcoming[j] = upcoming[j], upcoming[i]
	}
	sum.Upcoming = upcoming
	return sum, nil
}

func (s *Service) load(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	if appointmentID == uuid.Nil {
		return domain.Appointment{}, validationError("appointment_id is required")
	}
	a, err := s.repo.Get(ctx, appointmentID)
	if err != nil {
		return domain.Appointment{}, translateStoreError(err)
	}
	return a, nil
}

func (s *Service) validateSlot(slot domain.Slot) error {
	if err := slot.Validate(); err != nil {
		return err
	}
	today := clock.Today(s.clock)
	if slot.Date.Before(today) {
		return fmt.Errorf("%w: %s is before %s", domain.ErrPastDate, slot.Date.Format(domain.DateLayout), today.Format(domain.DateLayout))
	}
	return nil
}

// checkSlot runs the checks that need the provider lock held.
func (s *Service) checkSlot(ctx context.Context, tx store.ProviderTx, providerID uuid.UUID, slot domain.Slot, excludeID uuid.UUID) error {
	if s.opts.EnforceAvailability && s.availability != nil {
		ok, err := s.availability.IsWithinAvailability(ctx, providerID, slot.Date, slot.Start, slot.End)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrOutsideAvailability, slot)
		}
	}

	overlaps, err := s.detector.FindOverlaps(ctx, tx, providerID, slot.Date, slot.Start, slot.End, excludeID)
	if err != nil {
		return err
	}
	if len(overlaps) > 0 {
		return fmt.Errorf("%w: %s overlaps %s", domain.ErrSlotConflict, slot, overlaps[0].Slot())
	}
	return nil
}

func translateStoreError(err error) error {
	switch {
	case errors.Is(err, store.ErrConflict):
		return fmt.Errorf("%w: slot was taken concurrently", domain.ErrSlotConflict)
	case errors.Is(err, store.ErrNotFound):
		return domain.ErrNotFound
	}
	return err
}
