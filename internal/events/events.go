// Package events carries scheduling change notifications out of the process.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	AppointmentBooked      Type = "appointment.booked"
	AppointmentRescheduled Type = "appointment.rescheduled"
	AppointmentApproved    Type = "appointment.approved"
	AppointmentRejected    Type = "appointment.rejected"
	AppointmentCompleted   Type = "appointment.completed"
	AppointmentCancelled   Type = "appointment.cancelled"

	WindowAdded   Type = "availability.window_added"
	WindowRemoved Type = "availability.window_removed"
	WindowUpdated Type = "availability.window_updated"
)

// Event is one committed change. SubjectID is the appointment or window it concerns.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       Type      `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	ProviderID uuid.UUID `json:"provider_id"`
	CustomerID uuid.UUID `json:"customer_id"`
	SubjectID  uuid.UUID `json:"subject_id"`
	Data       any       `json:"data,omitempty"`
}

func New(typ Type, at time.Time, providerID, subjectID uuid.UUID, data any) Event {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return Event{
		ID:         id,
		Type:       typ,
		OccurredAt: at.UTC(),
		ProviderID: providerID,
		SubjectID:  subjectID,
		Data:       data,
	}
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Sink accepts events without blocking the caller.
type Sink interface {
	Dispatch(ctx context.Context, ev Event)
}

type job struct {
	ctx context.Context
	ev  Event
}

// Dispatcher hands events to a Publisher on a background worker. When the queue
// is full the event is dropped and logged; callers are never blocked.
type Dispatcher struct {
	publisher Publisher
	logger    *slog.Logger
	queue     chan job

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewDispatcher(publisher Publisher, buffer int, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if buffer <= 0 {
		buffer = 100
	}
	d := &Dispatcher{
		publisher: publisher,
		logger:    logger.With("component", "events"),
		queue:     make(chan job, buffer),
		done:      make(chan struct{}),
	}
	go d.worker()
	return d
}

func (d *Dispatcher) worker() {
	defer close(d.done)
	for j := range d.queue {
		if err := d.publisher.Publish(j.ctx, j.ev); err != nil {
			d.logger.ErrorContext(j.ctx, "publish failed", "event_id", j.ev.ID, "event_type", j.ev.Type, "err", err)
		}
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.WarnContext(ctx, "dispatcher closed, dropping event", "event_id", ev.ID, "event_type", ev.Type)
		return
	}

	select {
	case d.queue <- job{ctx: context.WithoutCancel(ctx), ev: ev}:
	default:
		d.logger.WarnContext(ctx, "event queue full, dropping event", "event_id", ev.ID, "event_type", ev.Type)
	}
}

// Close stops accepting events and waits for queued ones to be published or for
// ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LogPublisher writes events to the log. It stands in when no broker is configured.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p LogPublisher) Publish(ctx context.Context, ev Event) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "event", "event_id", ev.ID, "event_type", ev.Type, "provider_id", ev.ProviderID, "subject_id", ev.SubjectID)
	return nil
}
