// Package cache holds the read-through cache for provider availability windows.
package cache

import (
	"context"

	"github.com/google/uuid"

	"meetdesk/backend/internal/domain"
)

// WindowCache caches a provider's full window list. Every write to a provider's
// windows must be followed by Invalidate.
type WindowCache interface {
	Get(ctx context.Context, providerID uuid.UUID) ([]domain.AvailabilityWindow, bool)
	Put(ctx context.Context, providerID uuid.UUID, windows []domain.AvailabilityWindow)
	Invalidate(ctx context.Context, providerID uuid.UUID)
}

// Nop never hits.
type Nop struct{}

func (Nop) Get(context.Context, uuid.UUID) ([]domain.AvailabilityWindow, bool) { return nil, false }
func (Nop) Put(context.Context, uuid.UUID, []domain.AvailabilityWindow)         {}
func (Nop) Invalidate(context.Context, uuid.UUID)                               {}

func cloneWindows(in []domain.AvailabilityWindow) []domain.AvailabilityWindow {
	if in == nil {
		return nil
	}
	out := make([]domain.AvailabilityWindow, len(in))
	copy(out, in)
	return out
}
