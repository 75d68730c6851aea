package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"meetdesk/backend/internal/domain"
	"meetdesk/backend/internal/store"
)

func (s *Store) CreateWindow(ctx context.Context, w domain.AvailabilityWindow) (domain.AvailabilityWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w.Active && s.hasActiveDuplicate(w) {
		return domain.AvailabilityWindow{}, store.ErrDuplicate
	}
	if w.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.AvailabilityWindow{}, err
		}
		w.ID = id
	}
	now := time.Now().UTC()
	w.CreatedAt = now
	w.UpdatedAt = now
	s.windows[w.ID] = w
	return w, nil
}

func (s *Store) GetWindow(ctx context.Context, windowID uuid.UUID) (domain.AvailabilityWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.windows[windowID]
	if !ok {
		return domain.AvailabilityWindow{}, store.ErrNotFound
	}
	return w, nil
}

func (s *Store) SetWindowActive(ctx context.Context, windowID uuid.UUID, active bool) (domain.AvailabilityWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[windowID]
	if !ok {
		return domain.AvailabilityWindow{}, store.ErrNotFound
	}
	if active && !w.Active && s.hasActiveDuplicate(w) {
		return domain.AvailabilityWindow{}, store.ErrDuplicate
	}
	w.Active = active
	w.UpdatedAt = time.Now().UTC()
	s.windows[windowID] = w
	return w, nil
}

func (s *Store) DeleteWindow(ctx context.Context, providerID, windowID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[windowID]
	if !ok || w.ProviderID != providerID {
		return store.ErrNotFound
	}
	delete(s.windows, windowID)
	return nil
}

func (s *Store) ListWindows(ctx context.Context, providerID uuid.UUID) ([]domain.AvailabilityWindow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	var rows []domain.AvailabilityWindow
	for _, w := range s.windows {
		if w.ProviderID == providerID {
			rows = append(rows, w)
		}
	}
	s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].DayOfWeek != rows[j].DayOfWeek {
			return rows[i].DayOfWeek < rows[j].DayOfWeek
		}
		if rows[i].StartTime != rows[j].StartTime {
			return rows[i].StartTime < rows[j].StartTime
		}
		return rows[i].ID.String() < rows[j].ID.String()
	})
	return rows, nil
}

// hasActiveDuplicate must be called with s.mu held.
func (s *Store) hasActiveDuplicate(w domain.AvailabilityWindow) bool {
	for _, other := range s.windows {
		if other.ID != w.ID && other.Active && other.SameRange(w) {
			return true
		}
	}
	return false
}
