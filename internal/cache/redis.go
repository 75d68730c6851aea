package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"meetdesk/backend/internal/domain"
)

const redisKeyPrefix = "meetdesk:windows:"

// cachedWindow is the wire shape stored in Redis.
type cachedWindow struct {
	ID         uuid.UUID `json:"id"`
	ProviderID uuid.UUID `json:"provider_id"`
	DayOfWeek  int16     `json:"day_of_week"`
	Start      int       `json:"start_minute"`
	End        int       `json:"end_minute"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Redis shares the window cache across server replicas. Failures degrade to a miss.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedis(client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{client: client, ttl: ttl, logger: logger.With("component", "window_cache", "backend", "redis")}
}

func (c *Redis) Get(ctx context.Context, providerID uuid.UUID) ([]domain.AvailabilityWindow, bool) {
	raw, err := c.client.Get(ctx, redisKey(providerID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "cache get failed", "provider_id", providerID, "err", err)
		}
		return nil, false
	}
	windows, err := decodeWindows(raw)
	if err != nil {
		c.logger.WarnContext(ctx, "cache entry unreadable", "provider_id", providerID, "err", err)
		return nil, false
	}
	return windows, true
}

func (c *Redis) Put(ctx context.Context, providerID uuid.UUID, windows []domain.AvailabilityWindow) {
	raw, err := encodeWindows(windows)
	if err != nil {
		c.logger.WarnContext(ctx, "cache encode failed", "provider_id", providerID, "err", err)
		return
	}
	if err := c.client.Set(ctx, redisKey(providerID), raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "cache set failed", "provider_id", providerID, "err", err)
	}
}

func (c *Redis) Invalidate(ctx context.Context, providerID uuid.UUID) {
	if err := c.client.Del(ctx, redisKey(providerID)).Err(); err != nil {
		c.logger.WarnContext(ctx, "cache invalidate failed", "provider_id", providerID, "err", err)
	}
}

func redisKey(providerID uuid.UUID) string {
	return redisKeyPrefix + providerID.String()
}

func encodeWindows(windows []domain.AvailabilityWindow) ([]byte, error) {
	out := make([]cachedWindow, 0, len(windows))
	for _, w := range windows {
		out = append(out, cachedWindow{
			ID:         w.ID,
			ProviderID: w.ProviderID,
			DayOfWeek:  int16(w.DayOfWeek),
			Start:      int(w.StartTime),
			End:        int(w.EndTime),
			Active:     w.Active,
			CreatedAt:  w.CreatedAt,
			UpdatedAt:  w.UpdatedAt,
		})
	}
	return json.Marshal(out)
}

func decodeWindows(raw []byte) ([]domain.AvailabilityWindow, error) {
	var in []cachedWindow
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	out := make([]domain.AvailabilityWindow, 0, len(in))
	for _, w := range in {
		out = append(out, domain.AvailabilityWindow{
			ID:         w.ID,
			ProviderID: w.ProviderID,
			DayOfWeek:  domain.DayOfWeek(w.DayOfWeek),
			StartTime:  domain.TimeOfDay(w.Start),
			EndTime:    domain.TimeOfDay(w.End),
			Active:     w.Active,
			CreatedAt:  w.CreatedAt,
			UpdatedAt:  w.UpdatedAt,
		})
	}
	return out, nil
}
