package grpc

import (
	"context"
	"errors"
	"iter"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"meetdesk/backend/internal/domain"
	"meetdesk/backend/internal/service/appointments"
	"meetdesk/backend/internal/service/scheduling"
	"meetdesk/backend/internal/store"
)

type SchedulingServer struct {
	facade schedulingFacade
	log    *slog.Logger
}

var _ SchedulingServiceServer = (*SchedulingServer)(nil)

type schedulingFacade interface {
	Book(ctx context.Context, actor domain.Actor, req scheduling.BookRequest) (domain.Appointment, error)
	Reschedule(ctx context.Context, actor domain.Actor, req scheduling.RescheduleRequest) (domain.Appointment, error)
	Transition(ctx context.Context, actor domain.Actor, req scheduling.TransitionRequest) (domain.Appointment, error)
	Get(ctx context.Context, actor domain.Actor, appointmentID string) (domain.Appointment, error)
	ListFor(ctx context.Context, actor domain.Actor, statusFilter string) iter.Seq2[domain.Appointment, error]
	Summary(ctx context.Context, actor domain.Actor) (appointments.Summary, error)
	AddWindow(ctx context.Context, actor domain.Actor, req scheduling.WindowRequest) (domain.AvailabilityWindow, error)
	RemoveWindow(ctx context.Context, actor domain.Actor, windowID string) error
	SetWindowActive(ctx context.Context, actor domain.Actor, windowID string, active bool) (domain.AvailabilityWindow, error)
	ListWindows(ctx context.Context, providerID string) iter.Seq2[domain.AvailabilityWindow, error]
	CheckAvailability(ctx context.Context, req scheduling.SlotQuery) (scheduling.SlotCheck, error)
	OpenSlots(ctx context.Context, req scheduling.RangeQuery) ([]domain.Slot, error)
}

func NewSchedulingServer(facade schedulingFacade, log *slog.Logger) *SchedulingServer {
	if log == nil {
		log = slog.Default()
	}
	return &SchedulingServer{
		facade: facade,
		log:    log.With(slog.String("component", "grpc.scheduling")),
	}
}

var errNilRequest = status.Error(codes.InvalidArgument, "request is required")

// begin resolves the calling actor and a logger scoped to the rpc.
func (s *SchedulingServer) begin(ctx context.Context, rpc string) (domain.Actor, *slog.Logger, error) {
	log := s.log.With(slog.String("rpc", rpc))
	if id := RequestIDFromContext(ctx); id != "" {
		log = log.With(slog.String("request_id", id))
	}
	actor, ok := ActorFromContext(ctx)
	if !ok {
		log.Warn("unauthenticated call")
		return domain.Actor{}, log, status.Error(codes.Unauthenticated, "authentication required")
	}
	return actor, log.With(slog.String("actor", actor.String())), nil
}

// toStatus maps scheduling errors onto gRPC codes. Rule violations are logged at
// Info, malformed requests at Warn and everything else at Error.
func toStatus(log *slog.Logger, err error) error {
	var vErr *domain.ValidationError
	switch {
	case errors.As(err, &vErr):
		log.Warn("invalid request", slog.Any("err", err))
		return status.Error(codes.InvalidArgument, vErr.Error())
	case errors.Is(err, domain.ErrInvalidRange), errors.Is(err, domain.ErrPastDate):
		log.Warn("invalid request", slog.Any("err", err), slog.String("kind", domain.KindOf(err)))
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrSlotConflict):
		log.Info("slot conflict", slog.Any("err", err))
		return status.Error(codes.FailedPrecondition, "That time overlaps another booking with this provider. Pick a different slot.")
	case errors.Is(err, store.ErrIdempotencyConflict):
		log.Info("idempotency conflict")
		return status.Error(codes.FailedPrecondition, "This request key was already used for a different appointment. Try again.")
	case errors.Is(err, domain.ErrDuplicateWindow),
		errors.Is(err, domain.ErrOutsideAvailability),
		errors.Is(err, domain.ErrInvalidTransition):
		log.Info("request rejected", slog.Any("err", err), slog.String("kind", domain.KindOf(err)))
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		log.Info("request forbidden", slog.Any("err", err))
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		log.Info("not found", slog.Any("err", err))
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		log.Warn("request aborted", slog.Any("err", err))
		return status.FromContextError(err).Err()
	}
	log.Error("request failed", slog.Any("err", err))
	return status.Error(codes.Internal, "internal error")
}

func (s *SchedulingServer) BookAppointment(ctx context.Context, req *BookAppointmentRequest) (*AppointmentReply, error) {
	actor, log, err := s.begin(ctx, "BookAppointment")
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errNilRequest
	}

	appt, err := s.facade.Book(ctx, actor, scheduling.BookRequest{
		ProviderID:     req.ProviderID,
		Date:           req.Date,
		Start:          req.StartTime,
		End:            req.EndTime,
		Purpose:        req.Purpose,
		Notes:          req.Notes,
		IdempotencyKey: idempotencyKey(ctx),
	})
	if err != nil {
		return nil, toStatus(log.With(slog.String("provider_id", req.ProviderID), slog.String("date", req.Date)), err)
	}

	log.Info(
		"appointment booked",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("provider_id", appt.ProviderID.String()),
		slog.String("slot", appt.Slot().String()),
	)
	return &AppointmentReply{Appointment: toAppointment(appt)}, nil
}

func idempotencyKey(ctx context.Context) string {
	return firstValue(ctx, "idempotency-key", "x-idempotency-key")
}

func (s *SchedulingServer) RescheduleAppointment(ctx context.Context, req *RescheduleAppointmentRequest) (*AppointmentReply, error) {
	actor, log, err := s.begin(ctx, "RescheduleAppointment")
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errNilRequest
	}

	appt, err := s.facade.Reschedule(ctx, actor, scheduling.RescheduleRequest{
		AppointmentID: req.AppointmentID,
		Date:          req.Date,
		Start:         req.StartTime,
		End:           req.EndTime,
	})
	if err != nil {
		return nil, toStatus(log.With(slog.String("appointment_id", req.AppointmentID)), err)
	}

	log.Info("appointment rescheduled", slog.String("appointment_id", appt.ID.String()), slog.String("slot", appt.Slot().String()))
	return &AppointmentReply{Appointment: toAppointment(appt)}, nil
}

func (s *SchedulingServer) TransitionAppointment(ctx context.Context, req *TransitionAppointmentRequest) (*AppointmentReply, error) {
	actor, log, err := s.begin(ctx, "TransitionAppointment")
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errNilRequest
	}

	appt, err := s.facade.Transition(ctx, actor, scheduling.TransitionRequest{
		AppointmentID: req.AppointmentID,
		Target:        req.Target,
		Notes:         req.Notes,
	})
	if err != nil {
		return nil, toStatus(log.With(slog.String("appointment_id", req.AppointmentID), slog.String("target", req.Target)), err)
	}

	log.Info("appointment transitioned", slog.String("appointment_id", appt.ID.String()), slog.String("status", string(appt.Status)))
	return &AppointmentReply{Appointment: toAppointment(appt)}, nil
}

func (s *SchedulingServer) GetAppointment(ctx context.Context, req *GetAppointmentRequest) (*AppointmentReply, error) {
	actor, log, err := s.begin(ctx, "GetAppointment")
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errNilRequest
	}

	appt, err := s.facade.Get(ctx, actor, req.AppointmentID)
	if err != nil {
		return nil, toStatus(log.With(slog.String("appointment_id", req.AppointmentID)), err)
	}
	return &AppointmentReply{Appointment: toAppointment(appt)}, nil
}

func (s *SchedulingServer) ListAppointments(req *ListAppointmentsRequest, stream grpc.ServerStreamingServer[Appointment]) error {
	ctx := stream.Context()
	actor, log, err := s.begin(ctx, "ListAppointments")
	if err != nil {
		return err
	}
	if req == nil {
		return errNilRequest
	}

	n := 0
	for appt, err := range s.facade.ListFor(ctx, actor, req.Status) {
		if err != nil {
			return toStatus(log, err)
		}
		if err := stream.Send(toAppointment(appt)); err != nil {
			log.Warn("stream send failed", slog.Any("err", err), slog.Int("sent", n))
			return err
		}
		n++
	}

	log.Debug("appointments listed", slog.String("status", req.Status), slog.Int("count", n))
	return nil
}

func (s *SchedulingServer) GetSummary(ctx context.Context, req *GetSummaryRequest) (*SummaryReply, error) {
	actor, log, err := s.begin(ctx, "GetSummary")
	if err != nil {
		return nil, err
	}

	sum, err := s.facade.Summary(ctx, actor)
	if err != nil {
		return nil, toStatus(log, err)
	}
	return &SummaryReply{
		Role:     string(sum.Role),
		Total:    sum.Total,
		Pending:  sum.Pending,
		ThisWeek: sum.ThisWeek,
		Upcoming: toAppointments(sum.Upcoming),
		Past:     toAppointments(sum.Past),
	}, nil
}

func (s *SchedulingServer) AddWindow(ctx context.Context, req *AddWindowRequest) (*WindowReply, error) {
	actor, log, err := s.begin(ctx, "AddWindow")
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errNilRequest
	}

	w, err := s.facade.AddWindow(ctx, actor, scheduling.WindowRequest{
		DayOfWeek: req.DayOfWeek,
		Start:     req.StartTime,
		End:       req.EndTime,
	})
	if err != nil {
		return nil, toStatus(log, err)
	}

	log.Info("window added", slog.String("window_id", w.ID.String()), slog.String("day", w.DayOfWeek.String()))
	return &WindowReply{Window: toWindow(w)}, nil
}

func (s *SchedulingServer) RemoveWindow(ctx context.Context, req *RemoveWindowRequest) (*RemoveWindowReply, error) {
	actor, log, err := s.begin(ctx, "RemoveWindow")
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errNilRequest
	}

	if err := s.facade.RemoveWindow(ctx, actor, req.WindowID); err != nil {
		return nil, toStatus(log.With(slog.String("window_id", req.WindowID)), err)
	}

	log.Info("window removed", slog.String("window_id", req.WindowID))
	return &RemoveWindowReply{}, nil
}

func (s *SchedulingServer) SetWindowActive(ctx context.Context, req *SetWindowActiveRequest) (*WindowReply, error) {
	actor, log, err := s.begin(ctx, "SetWindowActive")
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errNilRequest
	}

	w, err := s.facade.SetWindowActive(ctx, actor, req.WindowID, req.Active)
	if err != nil {
		return nil, toStatus(log.With(slog.String("window_id", req.WindowID)), err)
	}

	log.Info("window updated", slog.String("window_id", w.ID.String()), slog.Bool("active", w.Active))
	return &WindowReply{Window: toWindow(w)}, nil
}

func (s *SchedulingServer) ListWindows(ctx context.Context, req *ListWindowsRequest) (*ListWindowsReply, error) {
	_, log, err := s.begin(ctx, "ListWindows")
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errNilRequest
	}

	out := []*Window{}
	for w, err := range s.facade.ListWindows(ctx, req.ProviderID) {
		if err != nil {
			return nil, toStatus(log.With(slog.String("provider_id", req.ProviderID)), err)
		}
		out = append(out, toWindow(w))
	}
	return &ListWindowsReply{Windows: out}, nil
}

func (s *SchedulingServer) CheckAvailability(ctx context.Context, req *CheckAvailabilityRequest) (*CheckAvailabilityReply, error) {
	_, log, err := s.begin(ctx, "CheckAvailability")
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errNilRequest
	}

	check, err := s.facade.CheckAvailability(ctx, scheduling.SlotQuery{
		ProviderID: req.ProviderID,
		Date:       req.Date,
		Start:      req.StartTime,
		End:        req.EndTime,
	})
	if err != nil {
		return nil, toStatus(log.With(slog.String("provider_id", req.ProviderID)), err)
	}
	return &CheckAvailabilityReply{
		Slot:               toSlot(check.Slot),
		WithinAvailability: check.WithinAvailability,
		Free:               check.Free,
	}, nil
}

func (s *SchedulingServer) ListOpenSlots(ctx context.Context, req *ListOpenSlotsRequest) (*ListOpenSlotsReply, error) {
	_, log, err := s.begin(ctx, "ListOpenSlots")
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errNilRequest
	}

	slots, err := s.facade.OpenSlots(ctx, scheduling.RangeQuery{ProviderID: req.ProviderID, From: req.From, To: req.To})
	if err != nil {
		return nil, toStatus(log.With(slog.String("provider_id", req.ProviderID)), err)
	}

	out := make([]*Slot, 0, len(slots))
	for _, sl := range slots {
		out = append(out, toSlot(sl))
	}
	log.Debug("open slots listed", slog.String("provider_id", req.ProviderID), slog.Int("count", len(out)))
	return &ListOpenSlotsReply{Slots: out}, nil
}

func toAppointment(a domain.Appointment) *Appointment {
	return &Appointment{
		ID:         a.ID.String(),
		CustomerID: a.CustomerID.String(),
		ProviderID: a.ProviderID.String(),
		Date:       a.Date.Format(domain.DateLayout),
		StartTime:  a.StartTime.String(),
		EndTime:    a.EndTime.String(),
		Purpose:    a.Purpose,
		Status:     string(a.Status),
		Notes:      a.Notes,
		CreatedAt:  a.CreatedAt.UTC(),
		UpdatedAt:  a.UpdatedAt.UTC(),
	}
}

func toAppointments(in []domain.Appointment) []*Appointment {
	out := make([]*Appointment, 0, len(in))
	for _, a := range in {
		out = append(out, toAppointment(a))
	}
	return out
}

func toWindow(w domain.AvailabilityWindow) *Window {
	return &Window{
		ID:         w.ID.String(),
		ProviderID: w.ProviderID.String(),
		DayOfWeek:  int(w.DayOfWeek),
		DayName:    w.DayOfWeek.String(),
		StartTime:  w.StartTime.String(),
		EndTime:    w.EndTime.String(),
		Active:     w.Active,
	}
}

func toSlot(s domain.Slot) *Slot {
	return &Slot{
		Date:      s.Date.Format(domain.DateLayout),
		StartTime: s.Start.String(),
		EndTime:   s.End.String(),
	}
}
