package cache

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"meetdesk/backend/internal/domain"
)

func sampleWindows(provider uuid.UUID) []domain.AvailabilityWindow {
	return []domain.AvailabilityWindow{
		{
			ID:         uuid.MustParse("00000000-0000-0000-0000-000000000101"),
			ProviderID: provider,
			DayOfWeek:  domain.Monday,
			StartTime:  domain.MustTimeOfDay("09:00"),
			EndTime:    domain.MustTimeOfDay("12:00"),
			Active:     true,
			CreatedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			UpdatedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			ID:         uuid.MustParse("00000000-0000-0000-0000-000000000102"),
			ProviderID: provider,
			DayOfWeek:  domain.Friday,
			StartTime:  domain.MustTimeOfDay("14:00"),
			EndTime:    domain.MustTimeOfDay("17:30"),
			CreatedAt:  time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
			UpdatedAt:  time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC),
		},
	}
}

func TestLRU_PutGetInvalidate(t *testing.T) {
	ctx := context.Background()
	c, err := NewLRU(2, nil)
	if err != nil {
		t.Fatalf("NewLRU error: %v", err)
	}
	provider := uuid.MustParse("00000000-0000-0000-0000-000000000002")

	if _, ok := c.Get(ctx, provider); ok {
		t.Fatalf("expected miss on empty cache")
	}

	windows := sampleWindows(provider)
	c.Put(ctx, provider, windows)

	got, ok := c.Get(ctx, provider)
	if !ok || len(got) != 2 {
		t.Fatalf("Get = %v, %v", got, ok)
	}

	// Callers mutating their copy must not leak into the cache.
	got[0].Active = false
	again, _ := c.Get(ctx, provider)
	if !again[0].Active {
		t.Fatalf("cached entry was mutated through a returned slice")
	}

	c.Invalidate(ctx, provider)
	if _, ok := c.Get(ctx, provider); ok {
		t.Fatalf("expected miss after Invalidate")
	}
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c, err := NewLRU(1, nil)
	if err != nil {
		t.Fatalf("NewLRU error: %v", err)
	}
	a := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	b := uuid.MustParse("00000000-0000-0000-0000-00000000000b")

	c.Put(ctx, a, sampleWindows(a))
	c.Put(ctx, b, sampleWindows(b))

	if _, ok := c.Get(ctx, a); ok {
		t.Fatalf("expected %s to be evicted", a)
	}
	if _, ok := c.Get(ctx, b); !ok {
		t.Fatalf("expected %s to be cached", b)
	}
}

func TestNewLRURejectsNonPositiveSize(t *testing.T) {
	if _, err := NewLRU(0, nil); err == nil {
		t.Fatalf("expected error for size 0")
	}
}

func TestWindowEncoding(t *testing.T) {
	provider := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	in := sampleWindows(provider)

	raw, err := encodeWindows(in)
	if err != nil {
		t.Fatalf("encodeWindows error: %v", err)
	}
	if !strings.Contains(string(raw), `"start_minute":540`) {
		t.Fatalf("encoded payload missing minutes: %s", raw)
	}

	out, err := decodeWindows(raw)
	if err != nil {
		t.Fatalf("decodeWindows error: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len(out) = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i].ID != in[i].ID || out[i].DayOfWeek != in[i].DayOfWeek ||
			out[i].StartTime != in[i].StartTime || out[i].EndTime != in[i].EndTime ||
			out[i].Active != in[i].Active || !out[i].UpdatedAt.Equal(in[i].UpdatedAt) {
			t.Fatalf("out[%d] = %+v, want %+v", i, out[i], in[i])
		}
	}

	if _, err := decodeWindows([]byte("not json")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestRedisIntegration(t *testing.T) {
	addr := strings.TrimSpace(os.Getenv("MEETDESK_TEST_REDIS_ADDR"))
	if addr == "" {
		t.Skip("MEETDESK_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	c := NewRedis(client, time.Minute, nil)
	provider := uuid.New()

	if _, ok := c.Get(ctx, provider); ok {
		t.Fatalf("expected miss for fresh provider")
	}
	c.Put(ctx, provider, sampleWindows(provider))
	got, ok := c.Get(ctx, provider)
	if !ok || len(got) != 2 {
		t.Fatalf("Get = %v, %v", got, ok)
	}
	c.Invalidate(ctx, provider)
	if _, ok := c.Get(ctx, provider); ok {
		t.Fatalf("expected miss after Invalidate")
	}
}
