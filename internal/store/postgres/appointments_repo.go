package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"meetdesk/backend/internal/domain"
	"meetdesk/backend/internal/store"
)

const (
	constraintNoOverlap     = "appointments_no_overlap"
	constraintAppointmentPK = "appointments_pkey"
	constraintWindowUnique  = "availability_windows_active_unique"
)

type AppointmentRepo struct {
	db *bun.DB
}

var _ store.AppointmentRepository = (*AppointmentRepo)(nil)

func NewAppointmentRepo(db *bun.DB) *AppointmentRepo {
	return &AppointmentRepo{db: db}
}

type providerTx struct {
	tx bun.Tx
}

func (r *AppointmentRepo) Get(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	var a domain.Appointment
	err := r.db.NewSelect().
		Model(&a).
		Where("id = ?", appointmentID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return a, nil
}

func (r *AppointmentRepo) ListPage(ctx context.Context, filter store.AppointmentFilter, after *store.Cursor, limit int) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	q := r.db.NewSelect().Model(&rows)
	if filter.CustomerID != uuid.Nil {
		q = q.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.ProviderID != uuid.Nil {
		q = q.Where("provider_id = ?", filter.ProviderID)
	}
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if after != nil {
		q = q.Where("(date, start_minute, id) < (?, ?, ?)", after.Date.Format(domain.DateLayout), int(after.StartTime), after.ID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.OrderExpr("date DESC, start_minute DESC, id DESC").Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AppointmentRepo) ListActive(ctx context.Context, providerID uuid.UUID, date time.Time) ([]domain.Appointment, error) {
	return listActive(ctx, r.db, providerID, date, date)
}

func (r *AppointmentRepo) ListActiveBetween(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]domain.Appointment, error) {
	return listActive(ctx, r.db, providerID, from, to)
}

func (r *AppointmentRepo) InProviderTransaction(ctx context.Context, providerID uuid.UUID, fn func(ctx context.Context, tx store.ProviderTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockProviderCalendar(ctx, tx, providerID); err != nil {
			return err
		}
		return fn(ctx, providerTx{tx: tx})
	})
}

func lockProviderCalendar(ctx context.Context, tx bun.Tx, providerID uuid.UUID) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", lockKey(providerID)).Exec(ctx)
	return err
}

func lockKey(providerID uuid.UUID) string {
	return "provider:" + providerID.String()
}

func listActive(ctx context.Context, db bun.IDB, providerID uuid.UUID, from, to time.Time) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := db.NewSelect().
		Model(&rows).
		Where("provider_id = ?", providerID).
		Where("date >= ?", from.Format(domain.DateLayout)).
		Where("date <= ?", to.Format(domain.DateLayout)).
		Where("status IN (?)", bun.In(domain.ActiveStatuses)).
		OrderExpr("date ASC, start_minute ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r providerTx) GetAppointment(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	var a domain.Appointment
	err := r.tx.NewSelect().
		Model(&a).
		Where("id = ?", appointmentID).
		For("UPDATE").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return a, nil
}

func (r providerTx) ListActive(ctx context.Context, providerID uuid.UUID, date time.Time) ([]domain.Appointment, error) {
	return listActive(ctx, r.tx, providerID, date, date)
}

func (r providerTx) CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	if appt.ID != uuid.Nil {
		existing, err := r.GetAppointment(ctx, appt.ID)
		switch {
		case err == nil:
			if !existing.SameBooking(appt) {
				return domain.Appointment{}, store.ErrIdempotencyConflict
			}
			return existing, nil
		case !errors.Is(err, store.ErrNotFound):
			return domain.Appointment{}, err
		}
	}

	m := domain.Appointment{
		ID:         appt.ID,
		CustomerID: appt.CustomerID,
		ProviderID: appt.ProviderID,
		Date:       domain.DateOf(appt.Date),
		StartTime:  appt.StartTime,
		EndTime:    appt.EndTime,
		Purpose:    appt.Purpose,
		Status:     appt.Status,
		Notes:      appt.Notes,
	}

	if _, err := r.tx.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.Appointment{}, translateWriteError(err)
	}
	return m, nil
}

func (r providerTx) UpdateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	existing, err := r.GetAppointment(ctx, appt.ID)
	if err != nil {
		return domain.Appointment{}, err
	}

	m := existing
	m.Date = domain.DateOf(appt.Date)
	m.StartTime = appt.StartTime
	m.EndTime = appt.EndTime
	m.Purpose = appt.Purpose
	m.Status = appt.Status
	m.Notes = appt.Notes

	res, err := r.tx.NewUpdate().
		Model(&m).
		Column("date", "start_minute", "end_minute", "purpose", "status", "notes", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return domain.Appointment{}, translateWriteError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Appointment{}, err
	}
	if affected == 0 {
		return domain.Appointment{}, store.ErrNotFound
	}
	return m, nil
}

// translateWriteError maps constraint violations to store sentinels.
func translateWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch {
	case pgErr.Code == "23P01" && pgErr.ConstraintName == constraintNoOverlap:
		return store.ErrConflict
	case pgErr.Code == "23505" && pgErr.ConstraintName == constraintAppointmentPK:
		return store.ErrIdempotencyConflict
	case pgErr.Code == "23505" && pgErr.ConstraintName == constraintWindowUnique:
		return store.ErrDuplicate
	}
	return err
}
