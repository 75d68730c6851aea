// Package memory keeps appointments and availability windows in process memory.
// It honours the same per-provider serialization contract as the postgres store
// and is used for tests and single-instance deployments.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"meetdesk/backend/internal/domain"
	"meetdesk/backend/internal/store"
)

type Store struct {
	mu           sync.RWMutex
	appointments map[uuid.UUID]domain.Appointment
	windows      map[uuid.UUID]domain.AvailabilityWindow

	locksMu sync.Mutex
	locks   map[uuid.UUID]*sync.Mutex
}

var (
	_ store.AppointmentRepository  = (*Store)(nil)
	_ store.AvailabilityRepository = (*Store)(nil)
)

func New() *Store {
	return &Store{
		appointments: make(map[uuid.UUID]domain.Appointment),
		windows:      make(map[uuid.UUID]domain.AvailabilityWindow),
		locks:        make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *Store) providerLock(providerID uuid.UUID) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[providerID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[providerID] = l
	}
	return l
}

func (s *Store) Get(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.appointments[appointmentID]
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	return a, nil
}

func (s *Store) ListPage(ctx context.Context, filter store.AppointmentFilter, after *store.Cursor, limit int) ([]domain.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	rows := make([]domain.Appointment, 0, len(s.appointments))
	for _, a := range s.appointments {
		if filter.CustomerID != uuid.Nil && a.CustomerID != filter.CustomerID {
			continue
		}
		if filter.ProviderID != uuid.Nil && a.ProviderID != filter.ProviderID {
			continue
		}
		if filter.Status != nil && a.Status != *filter.Status {
			continue
		}
		if !after.Includes(a) {
			continue
		}
		rows = append(rows, a)
	}
	s.mu.RUnlock()

	sortNewestFirst(rows)
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *Store) ListActive(ctx context.Context, providerID uuid.UUID, date time.Time) ([]domain.Appointment, error) {
	return s.ListActiveBetween(ctx, providerID, date, date)
}

func (s *Store) ListActiveBetween(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]domain.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	from = domain.DateOf(from)
	to = domain.DateOf(to)

	s.mu.RLock()
	defer s.mu.RUnlock()
	var rows []domain.Appointment
	for _, a := range s.appointments {
		if a.ProviderID != providerID || !a.Status.Active() {
			continue
		}
		if a.Date.Before(from) || a.Date.After(to) {
			continue
		}
		rows = append(rows, a)
	}
	sortByStart(rows)
	return rows, nil
}

func (s *Store) InProviderTransaction(ctx context.Context, providerID uuid.UUID, fn func(ctx context.Context, tx store.ProviderTx) error) error {
	l := s.providerLock(providerID)
	l.Lock()
	defer l.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &providerTx{s: s, providerID: providerID, staged: make(map[uuid.UUID]domain.Appointment)}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range tx.staged {
		s.appointments[a.ID] = a
	}
	return nil
}

type providerTx struct {
	s          *Store
	providerID uuid.UUID
	staged     map[uuid.UUID]domain.Appointment
}

var errForeignProvider = errors.New("appointment belongs to another provider")

func (tx *providerTx) GetAppointment(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	if a, ok := tx.staged[appointmentID]; ok {
		return a, nil
	}
	return tx.s.Get(ctx, appointmentID)
}

func (tx *providerTx) ListActive(ctx context.Context, providerID uuid.UUID, date time.Time) ([]domain.Appointment, error) {
	committed, err := tx.s.ListActive(ctx, providerID, date)
	if err != nil {
		return nil, err
	}
	date = domain.DateOf(date)

	rows := make([]domain.Appointment, 0, len(committed)+len(tx.staged))
	for _, a := range committed {
		if _, ok := tx.staged[a.ID]; ok {
			continue
		}
		rows = append(rows, a)
	}
	for _, a := range tx.staged {
		if a.ProviderID == providerID && a.Date.Equal(date) && a.Status.Active() {
			rows = append(rows, a)
		}
	}
	sortByStart(rows)
	return rows, nil
}

func (tx *providerTx) CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	if appt.ProviderID != tx.providerID {
		return domain.Appointment{}, errForeignProvider
	}
	if appt.ID != uuid.Nil {
		if existing, err := tx.GetAppointment(ctx, appt.ID); err == nil {
			if !existing.SameBooking(appt) {
				return domain.Appointment{}, store.ErrIdempotencyConflict
			}
			return existing, nil
		}
	} else {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.Appointment{}, err
		}
		appt.ID = id
	}
	if err := tx.checkExclusion(ctx, appt); err != nil {
		return domain.Appointment{}, err
	}

	now := time.Now().UTC()
	appt.Date = domain.DateOf(appt.Date)
	appt.CreatedAt = now
	appt.UpdatedAt = now
	tx.staged[appt.ID] = appt
	return appt, nil
}

func (tx *providerTx) UpdateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	existing, err := tx.GetAppointment(ctx, appt.ID)
	if err != nil {
		return domain.Appointment{}, err
	}
	if existing.ProviderID != tx.providerID || appt.ProviderID != tx.providerID {
		return domain.Appointment{}, errForeignProvider
	}
	if err := tx.checkExclusion(ctx, appt); err != nil {
		return domain.Appointment{}, err
	}

	appt.Date = domain.DateOf(appt.Date)
	appt.CreatedAt = existing.CreatedAt
	appt.UpdatedAt = time.Now().UTC()
	tx.staged[appt.ID] = appt
	return appt, nil
}

// checkExclusion mirrors the appointments_no_overlap constraint of the postgres schema.
func (tx *providerTx) checkExclusion(ctx context.Context, appt domain.Appointment) error {
	if !appt.Status.Active() {
		return nil
	}
	active, err := tx.ListActive(ctx, appt.ProviderID, appt.Date)
	if err != nil {
		return err
	}
	for _, other := range active {
		if other.ID == appt.ID {
			continue
		}
		if domain.IntervalsOverlap(appt.StartTime, appt.EndTime, other.StartTime, other.EndTime) {
			return store.ErrConflict
		}
	}
	return nil
}

func sortNewestFirst(rows []domain.Appointment) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		if a.StartTime != b.StartTime {
			return a.StartTime > b.StartTime
		}
		return a.ID.String() > b.ID.String()
	})
}

func sortByStart(rows []domain.Appointment) {
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		return rows[i].StartTime < rows[j].StartTime
	})
}
