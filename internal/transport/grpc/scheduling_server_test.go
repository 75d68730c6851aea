package grpc

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"meetdesk/backend/internal/domain"
	"meetdesk/backend/internal/identity"
	"meetdesk/backend/internal/service/appointments"
	"meetdesk/backend/internal/service/scheduling"
	"meetdesk/backend/internal/store"
)

type fakeFacade struct {
	bookFn              func(ctx context.Context, actor domain.Actor, req scheduling.BookRequest) (domain.Appointment, error)
	rescheduleFn        func(ctx context.Context, actor domain.Actor, req scheduling.RescheduleRequest) (domain.Appointment, error)
	transitionFn        func(ctx context.Context, actor domain.Actor, req scheduling.TransitionRequest) (domain.Appointment, error)
	getFn               func(ctx context.Context, actor domain.Actor, appointmentID string) (domain.Appointment, error)
	listForFn           func(ctx context.Context, actor domain.Actor, statusFilter string) iter.Seq2[domain.Appointment, error]
	summaryFn           func(ctx context.Context, actor domain.Actor) (appointments.Summary, error)
	addWindowFn         func(ctx context.Context, actor domain.Actor, req scheduling.WindowRequest) (domain.AvailabilityWindow, error)
	removeWindowFn      func(ctx context.Context, actor domain.Actor, windowID string) error
	setWindowActiveFn   func(ctx context.Context, actor domain.Actor, windowID string, active bool) (domain.AvailabilityWindow, error)
	listWindowsFn       func(ctx context.Context, providerID string) iter.Seq2[domain.AvailabilityWindow, error]
	checkAvailabilityFn func(ctx context.Context, req scheduling.SlotQuery) (scheduling.SlotCheck, error)
	openSlotsFn         func(ctx context.Context, req scheduling.RangeQuery) ([]domain.Slot, error)
}

func (f *fakeFacade) Book(ctx context.Context, actor domain.Actor, req scheduling.BookRequest) (domain.Appointment, error) {
	if f.bookFn == nil {
		panic("Book not configured")
	}
	return f.bookFn(ctx, actor, req)
}

func (f *fakeFacade) Reschedule(ctx context.Context, actor domain.Actor, req scheduling.RescheduleRequest) (domain.Appointment, error) {
	if f.rescheduleFn == nil {
		panic("Reschedule not configured")
	}
	return f.rescheduleFn(ctx, actor, req)
}

func (f *fakeFacade) Transition(ctx context.Context, actor domain.Actor, req scheduling.TransitionRequest) (domain.Appointment, error) {
	if f.transitionFn == nil {
		panic("Transition not configured")
	}
	return f.transitionFn(ctx, actor, req)
}

func (f *fakeFacade) Get(ctx context.Context, actor domain.Actor, appointmentID string) (domain.Appointment, error) {
	if f.getFn == nil {
		panic("Get not configured")
	}
	return f.getFn(ctx, actor, appointmentID)
}

func (f *fakeFacade) ListFor(ctx context.Context, actor domain.Actor, statusFilter string) iter.Seq2[domain.Appointment, error] {
	if f.listForFn == nil {
		panic("ListFor not configured")
	}
	return f.listForFn(ctx, actor, statusFilter)
}

func (f *fakeFacade) Summary(ctx context.Context, actor domain.Actor) (appointments.Summary, error) {
	if f.summaryFn == nil {
		panic("Summary not configured")
	}
	return f.summaryFn(ctx, actor)
}

func (f *fakeFacade) AddWindow(ctx context.Context, actor domain.Actor, req scheduling.WindowRequest) (domain.AvailabilityWindow, error) {
	if f.addWindowFn == nil {
		panic("AddWindow not configured")
	}
	return f.addWindowFn(ctx, actor, req)
}

func (f *fakeFacade) RemoveWindow(ctx context.Context, actor domain.Actor, windowID string) error {
	if f.removeWindowFn == nil {
		panic("RemoveWindow not configured")
	}
	return f.removeWindowFn(ctx, actor, windowID)
}

func (f *fakeFacade) SetWindowActive(ctx context.Context, actor domain.Actor, windowID string, active bool) (domain.AvailabilityWindow, error) {
	if f.setWindowActiveFn == nil {
		panic("SetWindowActive not configured")
	}
	return f.setWindowActiveFn(ctx, actor, windowID, active)
}

func (f *fakeFacade) ListWindows(ctx context.Context, providerID string) iter.Seq2[domain.AvailabilityWindow, error] {
	if f.listWindowsFn == nil {
		panic("ListWindows not configured")
	}
	return f.listWindowsFn(ctx, providerID)
}

func (f *fakeFacade) CheckAvailability(ctx context.Context, req scheduling.SlotQuery) (scheduling.SlotCheck, error) {
	if f.checkAvailabilityFn == nil {
		panic("CheckAvailability not configured")
	}
	return f.checkAvailabilityFn(ctx, req)
}

func (f *fakeFacade) OpenSlots(ctx context.Context, req scheduling.RangeQuery) ([]domain.Slot, error) {
	if f.openSlotsFn == nil {
		panic("OpenSlots not configured")
	}
	return f.openSlotsFn(ctx, req)
}

var (
	testCustomer = domain.CustomerActor(uuid.MustParse("00000000-0000-0000-0000-0000000000c1"))
	testProvider = domain.ProviderActor(uuid.MustParse("00000000-0000-0000-0000-0000000000b1"))
)

func asCustomer() context.Context {
	return WithActor(context.Background(), testCustomer)
}

func TestToStatus_MapsErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{name: "validation", err: domain.NewValidationError("date is required"), want: codes.InvalidArgument},
		{name: "invalid range", err: fmt.Errorf("%w: end time must be after start time", domain.ErrInvalidRange), want: codes.InvalidArgument},
		{name: "past date", err: domain.ErrPastDate, want: codes.InvalidArgument},
		{name: "slot conflict", err: fmt.Errorf("%w: taken", domain.ErrSlotConflict), want: codes.FailedPrecondition},
		{name: "idempotency", err: store.ErrIdempotencyConflict, want: codes.FailedPrecondition},
		{name: "duplicate window", err: domain.ErrDuplicateWindow, want: codes.FailedPrecondition},
		{name: "outside availability", err: domain.ErrOutsideAvailability, want: codes.FailedPrecondition},
		{name: "invalid transition", err: domain.ErrInvalidTransition, want: codes.FailedPrecondition},
		{name: "forbidden", err: domain.ErrForbidden, want: codes.PermissionDenied},
		{name: "not found", err: domain.ErrNotFound, want: codes.NotFound},
		{name: "deadline", err: fmt.Errorf("query: %w", context.DeadlineExceeded), want: codes.DeadlineExceeded},
		{name: "other", err: errors.New("connection reset"), want: codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := status.Code(toStatus(slog.Default(), tt.err))
			if got != tt.want {
				t.Fatalf("code = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestBookAppointment_RequiresActor(t *testing.T) {
	srv := NewSchedulingServer(&fakeFacade{}, slog.Default())

	_, err := srv.BookAppointment(context.Background(), &BookAppointmentRequest{})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("code = %s, want %s", status.Code(err), codes.Unauthenticated)
	}
}

func TestBookAppointment_PassesFieldsAndIdempotencyKey(t *testing.T) {
	var got scheduling.BookRequest
	var gotActor domain.Actor

	srv := NewSchedulingServer(&fakeFacade{
		bookFn: func(ctx context.Context, actor domain.Actor, req scheduling.BookRequest) (domain.Appointment, error) {
			got, gotActor = req, actor
			return domain.Appointment{
				ID:        uuid.MustParse("00000000-0000-0000-0000-000000000010"),
				Date:      domain.MustDate("2026-01-05"),
				StartTime: domain.MustTimeOfDay("10:00"),
				EndTime:   domain.MustTimeOfDay("10:30"),
				Status:    domain.StatusPending,
			}, nil
		},
	}, slog.Default())

	ctx := metadata.NewIncomingContext(asCustomer(), metadata.Pairs("idempotency-key", "  k1 "))
	reply, err := srv.BookAppointment(ctx, &BookAppointmentRequest{
		ProviderID: testProvider.ProfileID().String(),
		Date:       "2026-01-05",
		StartTime:  "10:00",
		EndTime:    "10:30",
		Purpose:    "intro",
	})
	if err != nil {
		t.Fatalf("BookAppointment error: %v", err)
	}
	if got.IdempotencyKey != "k1" || got.Start != "10:00" || got.End != "10:30" || got.Purpose != "intro" {
		t.Fatalf("facade request = %+v", got)
	}
	if gotActor != testCustomer {
		t.Fatalf("actor = %s, want %s", gotActor, testCustomer)
	}
	if reply.Appointment.Date != "2026-01-05" || reply.Appointment.StartTime != "10:00" || reply.Appointment.Status != "pending" {
		t.Fatalf("reply = %+v", reply.Appointment)
	}
}

func TestBookAppointment_MapsConflict(t *testing.T) {
	srv := NewSchedulingServer(&fakeFacade{
		bookFn: func(ctx context.Context, actor domain.Actor, req scheduling.BookRequest) (domain.Appointment, error) {
			return domain.Appointment{}, fmt.Errorf("%w: overlaps", domain.ErrSlotConflict)
		},
	}, slog.Default())

	_, err := srv.BookAppointment(asCustomer(), &BookAppointmentRequest{ProviderID: "p"})
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("code = %s, want %s", status.Code(err), codes.FailedPrecondition)
	}
}

func TestTransitionAppointment_MapsForbidden(t *testing.T) {
	srv := NewSchedulingServer(&fakeFacade{
		transitionFn: func(ctx context.Context, actor domain.Actor, req scheduling.TransitionRequest) (domain.Appointment, error) {
			if req.Target != "approved" {
				t.Fatalf("target = %q, want %q", req.Target, "approved")
			}
			return domain.Appointment{}, domain.ErrForbidden
		},
	}, slog.Default())

	_, err := srv.TransitionAppointment(asCustomer(), &TransitionAppointmentRequest{
		AppointmentID: "00000000-0000-0000-0000-000000000010",
		Target:        "approved",
	})
	if status.Code(err) != codes.PermissionDenied {
		t.Fatalf("code = %s, want %s", status.Code(err), codes.PermissionDenied)
	}
}

func TestListWindows_StopsOnError(t *testing.T) {
	srv := NewSchedulingServer(&fakeFacade{
		listWindowsFn: func(ctx context.Context, providerID string) iter.Seq2[domain.AvailabilityWindow, error] {
			return func(yield func(domain.AvailabilityWindow, error) bool) {
				yield(domain.AvailabilityWindow{}, domain.NewValidationError("provider_id must be a UUID"))
			}
		},
	}, slog.Default())

	_, err := srv.ListWindows(asCustomer(), &ListWindowsRequest{ProviderID: "nope"})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("code = %s, want %s", status.Code(err), codes.InvalidArgument)
	}
}

func TestRequestHandlersRejectNilRequest(t *testing.T) {
	srv := NewSchedulingServer(&fakeFacade{}, slog.Default())

	if _, err := srv.GetAppointment(asCustomer(), nil); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("GetAppointment code = %s, want %s", status.Code(err), codes.InvalidArgument)
	}
	if _, err := srv.ListOpenSlots(asCustomer(), nil); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("ListOpenSlots code = %s, want %s", status.Code(err), codes.InvalidArgument)
	}
}

func TestAuthenticate(t *testing.T) {
	auth := identity.NewAuthenticator("test-secret")
	token, err := auth.Issue(testProvider, time.Hour)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer "+token))
	ctx, err = authenticate(ctx, auth, fullMethod("GetSummary"))
	if err != nil {
		t.Fatalf("authenticate error: %v", err)
	}
	if actor, ok := ActorFromContext(ctx); !ok || actor != testProvider {
		t.Fatalf("actor = %v (%v), want %s", actor, ok, testProvider)
	}

	if _, err := authenticate(context.Background(), auth, fullMethod("GetSummary")); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("missing header code = %s, want %s", status.Code(err), codes.Unauthenticated)
	}

	bad := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer nope"))
	if _, err := authenticate(bad, auth, fullMethod("GetSummary")); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("bad token code = %s, want %s", status.Code(err), codes.Unauthenticated)
	}

	if _, err := authenticate(context.Background(), auth, "/grpc.health.v1.Health/Check"); err != nil {
		t.Fatalf("health check should bypass auth, got %v", err)
	}
}

func TestUnaryTimeoutInterceptor(t *testing.T) {
	interceptor := UnaryTimeoutInterceptor(50 * time.Millisecond)

	var hadDeadline bool
	_, _ = interceptor(context.Background(), nil, &grpc.UnaryServerInfo{}, func(ctx context.Context, req any) (any, error) {
		_, hadDeadline = ctx.Deadline()
		return nil, nil
	})
	if !hadDeadline {
		t.Fatalf("expected a default deadline")
	}

	parent, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()
	want, _ := parent.Deadline()
	_, _ = interceptor(parent, nil, &grpc.UnaryServerInfo{}, func(ctx context.Context, req any) (any, error) {
		if got, _ := ctx.Deadline(); !got.Equal(want) {
			t.Fatalf("deadline = %v, want %v", got, want)
		}
		return nil, nil
	})
}

func TestJSONCodec(t *testing.T) {
	c := jsonCodec{}

	raw, err := c.Marshal(&ListOpenSlotsRequest{ProviderID: "p", From: "2026-01-01", To: "2026-01-07"})
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	want := `{"provider_id":"p","from":"2026-01-01","to":"2026-01-07"}`
	if string(raw) != want {
		t.Fatalf("Marshal = %s, want %s", raw, want)
	}

	var empty GetSummaryRequest
	if err := c.Unmarshal(nil, &empty); err != nil {
		t.Fatalf("Unmarshal(nil) error: %v", err)
	}

	raw, err = c.Marshal(&healthpb.HealthCheckRequest{Service: serviceName})
	if err != nil {
		t.Fatalf("Marshal proto error: %v", err)
	}
	var hc healthpb.HealthCheckRequest
	if err := c.Unmarshal(raw, &hc); err != nil {
		t.Fatalf("Unmarshal proto error: %v", err)
	}
	if hc.GetService() != serviceName {
		t.Fatalf("service = %q, want %q", hc.GetService(), serviceName)
	}
}
