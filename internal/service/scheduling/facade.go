// Package scheduling is the single entry point for booking and availability
// operations. It normalizes arguments, traces each call and publishes an event
// after every successful write; the rules themselves live in the services it
// delegates to.
package scheduling

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"meetdesk/backend/internal/clock"
	"meetdesk/backend/internal/domain"
	"meetdesk/backend/internal/events"
	"meetdesk/backend/internal/otelx"
	"meetdesk/backend/internal/service/appointments"
	"meetdesk/backend/internal/service/availability"
	"meetdesk/backend/internal/service/conflicts"
)

// ReadModel serves the read-only overlap and busy-time queries.
type ReadModel interface {
	conflicts.ActiveLister
	conflicts.RangeLister
}

type Facade struct {
	appointments *appointments.Service
	registry     *availability.Registry
	detector     *conflicts.Detector
	reads        ReadModel
	events       events.Sink
	clock        clock.Clock
	logger       *slog.Logger
}

func NewFacade(appts *appointments.Service, registry *availability.Registry, reads ReadModel, sink events.Sink, clk clock.Clock, logger *slog.Logger) *Facade {
	if clk == nil {
		clk = clock.NewSystem(time.UTC)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Facade{
		appointments: appts,
		registry:     registry,
		detector:     conflicts.NewDetector(),
		reads:        reads,
		events:       sink,
		clock:        clk,
		logger:       logger.With("component", "scheduling"),
	}
}

func (f *Facade) Book(ctx context.Context, actor domain.Actor, req BookRequest) (a domain.Appointment, err error) {
	ctx, span := f.start(ctx, "Book", actor)
	defer func() { otelx.EndSpan(span, err) }()

	req.normalize()
	if err := validateStruct(req); err != nil {
		return domain.Appointment{}, err
	}

	a, replayed, err := f.appointments.Book(ctx, actor, appointments.CreateInput{
		ProviderID:     parseID(req.ProviderID),
		Date:           parseDate(req.Date),
		Start:          parseTime(req.Start),
		End:            parseTime(req.End),
		Purpose:        req.Purpose,
		Notes:          req.Notes,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	span.SetAttributes(
		attribute.String("appointment.id", a.ID.String()),
		attribute.Bool("appointment.replayed", replayed),
	)
	if !replayed {
		f.emitAppointment(ctx, events.AppointmentBooked, a)
	}
	return a, nil
}

func (f *Facade) Reschedule(ctx context.Context, actor domain.Actor, req RescheduleRequest) (a domain.Appointment, err error) {
	ctx, span := f.start(ctx, "Reschedule", actor)
	defer func() { otelx.EndSpan(span, err) }()

	req.normalize()
	if err := validateStruct(req); err != nil {
		return domain.Appointment{}, err
	}

	a, err = f.appointments.Reschedule(ctx, actor, parseID(req.AppointmentID), appointments.RescheduleInput{
		Date:  parseDate(req.Date),
		Start: parseTime(req.Start),
		End:   parseTime(req.End),
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	f.emitAppointment(ctx, events.AppointmentRescheduled, a)
	return a, nil
}

var transitionEvents = map[domain.Status]events.Type{
	domain.StatusApproved:  events.AppointmentApproved,
	domain.StatusRejected:  events.AppointmentRejected,
	domain.StatusCompleted: events.AppointmentCompleted,
	domain.StatusCancelled: events.AppointmentCancelled,
}

// Transition passes the raw target through; unknown targets surface as
// domain.ErrInvalidTransition from the lifecycle checks.
func (f *Facade) Transition(ctx context.Context, actor domain.Actor, req TransitionRequest) (a domain.Appointment, err error) {
	ctx, span := f.start(ctx, "Transition", actor)
	defer func() { otelx.EndSpan(span, err) }()

	req.normalize()
	if err := validateStruct(req); err != nil {
		return domain.Appointment{}, err
	}
	span.SetAttributes(attribute.String("appointment.target", req.Target))

	a, err = f.appointments.Transition(ctx, actor, parseID(req.AppointmentID), appointments.TransitionInput{
		Target: domain.Status(req.Target),
		Notes:  req.Notes,
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	if typ, ok := transitionEvents[a.Status]; ok {
		f.emitAppointment(ctx, typ, a)
	}
	return a, nil
}

func (f *Facade) Get(ctx context.Context, actor domain.Actor, appointmentID string) (a domain.Appointment, err error) {
	ctx, span := f.start(ctx, "Get", actor)
	defer func() { otelx.EndSpan(span, err) }()

	id, err := uuid.Parse(appointmentID)
	if err != nil {
		return domain.Appointment{}, domain.NewValidationError("appointment_id must be a UUID")
	}
	return f.appointments.Get(ctx, actor, id)
}

// ListFor yields the actor's appointments newest first. statusFilter is empty or
// one of the status names.
func (f *Facade) ListFor(ctx context.Context, actor domain.Actor, statusFilter string) iter.Seq2[domain.Appointment, error] {
	return func(yield func(domain.Appointment, error) bool) {
		ctx, span := f.start(ctx, "ListFor", actor)
		var err error
		defer func() { otelx.EndSpan(span, err) }()

		var status *domain.Status
		if statusFilter != "" {
			st, ok := domain.ParseStatus(statusFilter)
			if !ok {
				err = domain.NewValidationError(fmt.Sprintf("unknown status %q", statusFilter))
				yield(domain.Appointment{}, err)
				return
			}
			status = &st
		}

		n := 0
		for a, iterErr := range f.appointments.List(ctx, actor, status) {
			if iterErr != nil {
				err = iterErr
				yield(domain.Appointment{}, err)
				return
			}
			n++
			if !yield(a, nil) {
				break
			}
		}
		span.SetAttributes(attribute.Int("appointments.yielded", n))
	}
}

func (f *Facade) Summary(ctx context.Context, actor domain.Actor) (s appointments.Summary, err error) {
	ctx, span := f.start(ctx, "Summary", actor)
	defer func() { otelx.EndSpan(span, err) }()
	return f.appointments.Summary(ctx, actor)
}

func (f *Facade) AddWindow(ctx context.Context, actor domain.Actor, req WindowRequest) (w domain.AvailabilityWindow, err error) {
	ctx, span := f.start(ctx, "AddWindow", actor)
	defer func() { otelx.EndSpan(span, err) }()

	req.normalize()
	if err := validateStruct(req); err != nil {
		return domain.AvailabilityWindow{}, err
	}

	w, err = f.registry.AddWindow(ctx, actor, domain.DayOfWeek(req.DayOfWeek), parseTime(req.Start), parseTime(req.End))
	if err != nil {
		return domain.AvailabilityWindow{}, err
	}
	f.emitWindow(ctx, events.WindowAdded, w)
	return w, nil
}

func (f *Facade) RemoveWindow(ctx context.Context, actor domain.Actor, windowID string) (err error) {
	ctx, span := f.start(ctx, "RemoveWindow", actor)
	defer func() { otelx.EndSpan(span, err) }()

	id, err := uuid.Parse(windowID)
	if err != nil {
		return domain.NewValidationError("window_id must be a UUID")
	}
	if err := f.registry.RemoveWindow(ctx, id, actor); err != nil {
		return err
	}
	f.emitWindow(ctx, events.WindowRemoved, domain.AvailabilityWindow{ID: id, ProviderID: actor.ProfileID()})
	return nil
}

func (f *Facade) SetWindowActive(ctx context.Context, actor domain.Actor, windowID string, active bool) (w domain.AvailabilityWindow, err error) {
	ctx, span := f.start(ctx, "SetWindowActive", actor)
	defer func() { otelx.EndSpan(span, err) }()

	id, err := uuid.Parse(windowID)
	if err != nil {
		return domain.AvailabilityWindow{}, domain.NewValidationError("window_id must be a UUID")
	}
	w, err = f.registry.SetWindowActive(ctx, id, actor, active)
	if err != nil {
		return domain.AvailabilityWindow{}, err
	}
	f.emitWindow(ctx, events.WindowUpdated, w)
	return w, nil
}

func (f *Facade) ListWindows(ctx context.Context, providerID string) iter.Seq2[domain.AvailabilityWindow, error] {
	return func(yield func(domain.AvailabilityWindow, error) bool) {
		ctx, span := otelx.Start(ctx, "scheduling.ListWindows",
			trace.WithAttributes(attribute.String("provider.id", providerID)))
		var err error
		defer func() { otelx.EndSpan(span, err) }()

		id, parseErr := uuid.Parse(providerID)
		if parseErr != nil {
			err = domain.NewValidationError("provider_id must be a UUID")
			yield(domain.AvailabilityWindow{}, err)
			return
		}

		n := 0
		for w, iterErr := range f.registry.ListWindows(ctx, id) {
			if iterErr != nil {
				err = iterErr
				yield(domain.AvailabilityWindow{}, err)
				return
			}
			n++
			if !yield(w, nil) {
				break
			}
		}
		span.SetAttributes(attribute.Int("windows.yielded", n))
	}
}

// SlotCheck describes a candidate slot. Free means no pending or approved
// appointment overlaps it.
type SlotCheck struct {
	Slot               domain.Slot
	WithinAvailability bool
	Free               bool
}

func (f *Facade) CheckAvailability(ctx context.Context, req SlotQuery) (c SlotCheck, err error) {
	ctx, span := otelx.Start(ctx, "scheduling.CheckAvailability")
	defer func() { otelx.EndSpan(span, err) }()

	req.normalize()
	if err := validateStruct(req); err != nil {
		return SlotCheck{}, err
	}
	providerID := parseID(req.ProviderID)
	slot := domain.Slot{Date: parseDate(req.Date), Start: parseTime(req.Start), End: parseTime(req.End)}
	if err := slot.Validate(); err != nil {
		return SlotCheck{}, err
	}

	within, err := f.registry.IsWithinAvailability(ctx, providerID, slot.Date, slot.Start, slot.End)
	if err != nil {
		return SlotCheck{}, err
	}
	overlaps, err := f.detector.FindOverlaps(ctx, f.reads, providerID, slot.Date, slot.Start, slot.End, uuid.Nil)
	if err != nil {
		return SlotCheck{}, err
	}
	return SlotCheck{Slot: slot, WithinAvailability: within, Free: len(overlaps) == 0}, nil
}

// OpenSlots lists the parts of the provider's active windows over [from, to] that no
// pending or approved appointment holds. Dates before today are skipped.
func (f *Facade) OpenSlots(ctx context.Context, req RangeQuery) (slots []domain.Slot, err error) {
	ctx, span := otelx.Start(ctx, "scheduling.OpenSlots")
	defer func() { otelx.EndSpan(span, err) }()

	req.normalize()
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	providerID := parseID(req.ProviderID)
	from, to := parseDate(req.From), parseDate(req.To)
	if today := clock.Today(f.clock); from.Before(today) {
		from = today
	}
	if to.Before(from) {
		return nil, nil
	}

	occs, err := f.registry.Occurrences(ctx, providerID, from, to)
	if err != nil {
		return nil, err
	}
	busy, err := f.detector.Busy(ctx, f.reads, providerID, from, to)
	if err != nil {
		return nil, err
	}

	windows := make([]domain.Slot, 0, len(occs))
	for _, o := range occs {
		windows = append(windows, o.Slot)
	}
	for _, w := range mergeSlots(windows) {
		slots = append(slots, domain.Subtract(w, busy)...)
	}
	span.SetAttributes(attribute.Int("slots.open", len(slots)))
	return slots, nil
}

// mergeSlots joins overlapping or touching slots on the same date.
func mergeSlots(in []domain.Slot) []domain.Slot {
	if len(in) == 0 {
		return nil
	}
	sorted := append([]domain.Slot(nil), in...)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].Start < sorted[j].Start
	})

	out := []domain.Slot{sorted[0]}
	for _, s := range sorted[1:] {
		last := &out[len(out)-1]
		if last.Date.Equal(s.Date) && s.Start <= last.End {
			if s.End > last.End {
				last.End = s.End
			}
			continue
		}
		out = append(out, s)
	}
	return out
}

func (f *Facade) start(ctx context.Context, op string, actor domain.Actor) (context.Context, trace.Span) {
	return otelx.Start(ctx, "scheduling."+op, trace.WithAttributes(
		attribute.String("actor.role", string(actor.Role())),
		attribute.String("actor.profile_id", actor.ProfileID().String()),
	))
}

type appointmentData struct {
	Status  domain.Status `json:"status"`
	Date    string        `json:"date"`
	Start   string        `json:"start_time"`
	End     string        `json:"end_time"`
	Purpose string        `json:"purpose"`
}

func (f *Facade) emitAppointment(ctx context.Context, typ events.Type, a domain.Appointment) {
	if f.events == nil {
		return
	}
	ev := events.New(typ, f.clock.Now(), a.ProviderID, a.ID, appointmentData{
		Status:  a.Status,
		Date:    a.Date.Format(domain.DateLayout),
		Start:   a.StartTime.String(),
		End:     a.EndTime.String(),
		Purpose: a.Purpose,
	})
	ev.CustomerID = a.CustomerID
	f.events.Dispatch(ctx, ev)
}

type windowData struct {
	DayOfWeek int    `json:"day_of_week"`
	Start     string `json:"start_time,omitempty"`
	End       string `json:"end_time,omitempty"`
	Active    bool   `json:"active"`
}

func (f *Facade) emitWindow(ctx context.Context, typ events.Type, w domain.AvailabilityWindow) {
	if f.events == nil {
		return
	}
	var data any
	if typ != events.WindowRemoved {
		data = windowData{
			DayOfWeek: int(w.DayOfWeek),
			Start:     w.StartTime.String(),
			End:       w.EndTime.String(),
			Active:    w.Active,
		}
	}
	f.events.Dispatch(ctx, events.New(typ, f.clock.Now(), w.ProviderID, w.ID, data))
}
