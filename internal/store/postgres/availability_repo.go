package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"meetdesk/backend/internal/domain"
	"meetdesk/backend/internal/store"
)

type AvailabilityRepo struct {
	db *bun.DB
}

var _ store.AvailabilityRepository = (*AvailabilityRepo)(nil)

func NewAvailabilityRepo(db *bun.DB) *AvailabilityRepo {
	return &AvailabilityRepo{db: db}
}

func (r *AvailabilityRepo) CreateWindow(ctx context.Context, w domain.AvailabilityWindow) (domain.AvailabilityWindow, error) {
	m := domain.AvailabilityWindow{
		ID:         w.ID,
		ProviderID: w.ProviderID,
		DayOfWeek:  w.DayOfWeek,
		StartTime:  w.StartTime,
		EndTime:    w.EndTime,
		Active:     w.Active,
	}
	if _, err := r.db.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.AvailabilityWindow{}, translateWriteError(err)
	}
	return m, nil
}

func (r *AvailabilityRepo) GetWindow(ctx context.Context, windowID uuid.UUID) (domain.AvailabilityWindow, error) {
	var w domain.AvailabilityWindow
	err := r.db.NewSelect().
		Model(&w).
		Where("id = ?", windowID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.AvailabilityWindow{}, store.ErrNotFound
		}
		return domain.AvailabilityWindow{}, err
	}
	return w, nil
}

func (r *AvailabilityRepo) SetWindowActive(ctx context.Context, windowID uuid.UUID, active bool) (domain.AvailabilityWindow, error) {
	w, err := r.GetWindow(ctx, windowID)
	if err != nil {
		return domain.AvailabilityWindow{}, err
	}
	w.Active = active

	res, err := r.db.NewUpdate().
		Model(&w).
		Column("active", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return domain.AvailabilityWindow{}, translateWriteError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.AvailabilityWindow{}, err
	}
	if affected == 0 {
		return domain.AvailabilityWindow{}, store.ErrNotFound
	}
	return w, nil
}

func (r *AvailabilityRepo) DeleteWindow(ctx context.Context, providerID, windowID uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*domain.AvailabilityWindow)(nil)).
		Where("provider_id = ?", providerID).
		Where("id = ?", windowID).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *AvailabilityRepo) ListWindows(ctx context.Context, providerID uuid.UUID) ([]domain.AvailabilityWindow, error) {
	var rows []domain.AvailabilityWindow
	err := r.db.NewSelect().
		Model(&rows).
		Where("provider_id = ?", providerID).
		OrderExpr("day_of_week ASC, start_minute ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
