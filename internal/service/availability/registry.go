// Package availability manages providers' recurring weekly availability windows.
package availability

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"meetdesk/backend/internal/cache"
	"meetdesk/backend/internal/domain"
	"meetdesk/backend/internal/store"
)

type Registry struct {
	repo   store.AvailabilityRepository
	cache  cache.WindowCache
	logger *slog.Logger

	// generations counts window writes per provider. A read only fills the cache
	// when no write happened while it was loading.
	mu          sync.Mutex
	generations map[uuid.UUID]uint64
}

func NewRegistry(repo store.AvailabilityRepository, windowCache cache.WindowCache, logger *slog.Logger) *Registry {
	if windowCache == nil {
		windowCache = cache.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		repo:        repo,
		cache:       windowCache,
		logger:      logger.With("component", "availability"),
		generations: make(map[uuid.UUID]uint64),
	}
}

func (r *Registry) AddWindow(ctx context.Context, actor domain.Actor, day domain.DayOfWeek, start, end domain.TimeOfDay) (domain.AvailabilityWindow, error) {
	if !actor.IsProvider() {
		return domain.AvailabilityWindow{}, fmt.Errorf("%w: only providers declare availability", domain.ErrForbidden)
	}
	if !day.Valid() {
		return domain.AvailabilityWindow{}, domain.NewValidationError("day_of_week must be between 0 (Monday) and 6 (Sunday)")
	}
	if err := (domain.Slot{Start: start, End: end}).Validate(); err != nil {
		return domain.AvailabilityWindow{}, err
	}

	created, err := r.repo.CreateWindow(ctx, domain.AvailabilityWindow{
		ProviderID: actor.ProfileID(),
		DayOfWeek:  day,
		StartTime:  start,
		EndTime:    end,
		Active:     true,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return domain.AvailabilityWindow{}, fmt.Errorf("%w: %s %s-%s", domain.ErrDuplicateWindow, day, start, end)
		}
		return domain.AvailabilityWindow{}, err
	}
	r.invalidate(ctx, created.ProviderID)
	r.logger.InfoContext(ctx, "window added", "provider_id", created.ProviderID, "window_id", created.ID, "day", created.DayOfWeek.String())
	return created, nil
}

func (r *Registry) RemoveWindow(ctx context.Context, windowID uuid.UUID, actor domain.Actor) error {
	w, err := r.ownedWindow(ctx, windowID, actor)
	if err != nil {
		return err
	}
	if err := r.repo.DeleteWindow(ctx, w.ProviderID, w.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrNotFound
		}
		return err
	}
	r.invalidate(ctx, w.ProviderID)
	r.logger.InfoContext(ctx, "window removed", "provider_id", w.ProviderID, "window_id", w.ID)
	return nil
}

func (r *Registry) SetWindowActive(ctx context.Context, windowID uuid.UUID, actor domain.Actor, active bool) (domain.AvailabilityWindow, error) {
	w, err := r.ownedWindow(ctx, windowID, actor)
	if err != nil {
		return domain.AvailabilityWindow{}, err
	}
	if w.Active == active {
		return w, nil
	}

	updated, err := r.repo.SetWindowActive(ctx, w.ID, active)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicate):
			return domain.AvailabilityWindow{}, fmt.Errorf("%w: %s %s-%s", domain.ErrDuplicateWindow, w.DayOfWeek, w.StartTime, w.EndTime)
		case errors.Is(err, store.ErrNotFound):
			return domain.AvailabilityWindow{}, domain.ErrNotFound
		}
		return domain.AvailabilityWindow{}, err
	}
	r.invalidate(ctx, w.ProviderID)
	return updated, nil
}

// ListWindows yields the provider's windows ordered by day and start time. Each
// range over the sequence reads the current state again.
func (r *Registry) ListWindows(ctx context.Context, providerID uuid.UUID) iter.Seq2[domain.AvailabilityWindow, error] {
	return func(yield func(domain.AvailabilityWindow, error) bool) {
		windows, err := r.windows(ctx, providerID)
		if err != nil {
			yield(domain.AvailabilityWindow{}, err)
			return
		}
		for _, w := range windows {
			if !yield(w, nil) {
				return
			}
		}
	}
}

// IsWithinAvailability reports whether [start, end) on date lies entirely inside one
// active window declared for that weekday.
func (r *Registry) IsWithinAvailability(ctx context.Context, providerID uuid.UUID, date time.Time, start, end domain.TimeOfDay) (bool, error) {
	windows, err := r.windows(ctx, providerID)
	if err != nil {
		return false, err
	}
	want := domain.Slot{Date: domain.DateOf(date), Start: start, End: end}
	for _, w := range windows {
		if !w.Active {
			continue
		}
		if s, ok := w.On(date); ok && s.Contains(want) {
			return true, nil
		}
	}
	return false, nil
}

// Occurrences expands the provider's active windows over the dates in [from, to].
func (r *Registry) Occurrences(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]domain.WindowOccurrence, error) {
	windows, err := r.windows(ctx, providerID)
	if err != nil {
		return nil, err
	}
	occs, err := domain.ExpandWeeklyWindows(windows, from, to)
	if err != nil {
		return nil, domain.NewValidationError(err.Error())
	}
	return occs, nil
}

func (r *Registry) ownedWindow(ctx context.Context, windowID uuid.UUID, actor domain.Actor) (domain.AvailabilityWindow, error) {
	if !actor.IsProvider() {
		return domain.AvailabilityWindow{}, fmt.Errorf("%w: only providers manage availability", domain.ErrForbidden)
	}
	w, err := r.repo.GetWindow(ctx, windowID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.AvailabilityWindow{}, domain.ErrNotFound
		}
		return domain.AvailabilityWindow{}, err
	}
	if w.ProviderID != actor.ProfileID() {
		return domain.AvailabilityWindow{}, fmt.Errorf("%w: window belongs to another provider", domain.ErrForbidden)
	}
	return w, nil
}

func (r *Registry) windows(ctx context.Context, providerID uuid.UUID) ([]domain.AvailabilityWindow, error) {
	if cached, ok := r.cache.Get(ctx, providerID); ok {
		return cached, nil
	}

	r.mu.Lock()
	gen := r.generations[providerID]
	r.mu.Unlock()

	windows, err := r.repo.ListWindows(ctx, providerID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.generations[providerID] == gen {
		r.cache.Put(ctx, providerID, windows)
	}
	return windows, nil
}

// invalidate must run after the write committed.
func (r *Registry) invalidate(ctx context.Context, providerID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generations[providerID]++
	r.cache.Invalidate(ctx, providerID)
}
