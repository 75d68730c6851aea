package store

import (
	"context"

	"github.com/google/uuid"

	"meetdesk/backend/internal/domain"
)

type AvailabilityRepository interface {
	// CreateWindow returns ErrDuplicate when an identical active window exists.
	CreateWindow(ctx context.Context, w domain.AvailabilityWindow) (domain.AvailabilityWindow, error)
	GetWindow(ctx context.Context, windowID uuid.UUID) (domain.AvailabilityWindow, error)
	// SetWindowActive returns ErrDuplicate when activating would duplicate another active window.
	SetWindowActive(ctx context.Context, windowID uuid.UUID, active bool) (domain.AvailabilityWindow, error)
	DeleteWindow(ctx context.Context, providerID, windowID uuid.UUID) error
	// ListWindows returns windows ordered by (day_of_week, start).
	ListWindows(ctx context.Context, providerID uuid.UUID) ([]domain.AvailabilityWindow, error)
}
