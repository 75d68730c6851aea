package cache

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"meetdesk/backend/internal/domain"
)

type LRU struct {
	cache  *lru.Cache[uuid.UUID, []domain.AvailabilityWindow]
	logger *slog.Logger
}

func NewLRU(size int, logger *slog.Logger) (*LRU, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c, err := lru.New[uuid.UUID, []domain.AvailabilityWindow](size)
	if err != nil {
		return nil, err
	}
	return &LRU{cache: c, logger: logger.With("component", "window_cache", "backend", "lru")}, nil
}

func (c *LRU) Get(ctx context.Context, providerID uuid.UUID) ([]domain.AvailabilityWindow, bool) {
	windows, ok := c.cache.Get(providerID)
	if !ok {
		c.logger.DebugContext(ctx, "cache miss", "provider_id", providerID)
		return nil, false
	}
	return cloneWindows(windows), true
}

func (c *LRU) Put(ctx context.Context, providerID uuid.UUID, windows []domain.AvailabilityWindow) {
	c.cache.Add(providerID, cloneWindows(windows))
}

func (c *LRU) Invalidate(ctx context.Context, providerID uuid.UUID) {
	c.cache.Remove(providerID)
}
