package availability

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"meetdesk/backend/internal/cache"
	"meetdesk/backend/internal/domain"
	"meetdesk/backend/internal/store"
	"meetdesk/backend/internal/store/memory"
)

var (
	providerID = uuid.MustParse("00000000-0000-0000-0000-000000000002")
	otherID    = uuid.MustParse("00000000-0000-0000-0000-000000000003")
	customerID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
)

type countingRepo struct {
	store.AvailabilityRepository
	lists int
}

func (c *countingRepo) ListWindows(ctx context.Context, providerID uuid.UUID) ([]domain.AvailabilityWindow, error) {
	c.lists++
	return c.AvailabilityRepository.ListWindows(ctx, providerID)
}

// gatedRepo parks the first ListWindows call after it has read, until release is closed.
type gatedRepo struct {
	store.AvailabilityRepository
	once    sync.Once
	loaded  chan struct{}
	release chan struct{}
}

func (g *gatedRepo) ListWindows(ctx context.Context, providerID uuid.UUID) ([]domain.AvailabilityWindow, error) {
	windows, err := g.AvailabilityRepository.ListWindows(ctx, providerID)
	g.once.Do(func() {
		close(g.loaded)
		<-g.release
	})
	return windows, err
}

func newRegistry(t *testing.T) (*Registry, *countingRepo) {
	t.Helper()
	lru, err := cache.NewLRU(16, nil)
	if err != nil {
		t.Fatalf("NewLRU error: %v", err)
	}
	repo := &countingRepo{AvailabilityRepository: memory.New()}
	return NewRegistry(repo, lru, nil), repo
}

func collect(t *testing.T, r *Registry, provider uuid.UUID) []domain.AvailabilityWindow {
	t.Helper()
	var out []domain.AvailabilityWindow
	for w, err := range r.ListWindows(context.Background(), provider) {
		if err != nil {
			t.Fatalf("ListWindows error: %v", err)
		}
		out = append(out, w)
	}
	return out
}

func TestAddWindow_Rules(t *testing.T) {
	ctx := context.Background()
	r, _ := newRegistry(t)
	provider := domain.ProviderActor(providerID)

	if _, err := r.AddWindow(ctx, domain.CustomerActor(customerID), domain.Monday, domain.MustTimeOfDay("09:00"), domain.MustTimeOfDay("12:00")); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("customer AddWindow err = %v, want %v", err, domain.ErrForbidden)
	}
	if _, err := r.AddWindow(ctx, provider, domain.Monday, domain.MustTimeOfDay("12:00"), domain.MustTimeOfDay("12:00")); !errors.Is(err, domain.ErrInvalidRange) {
		t.Fatalf("empty range err = %v, want %v", err, domain.ErrInvalidRange)
	}
	var vErr *domain.ValidationError
	if _, err := r.AddWindow(ctx, provider, domain.DayOfWeek(7), domain.MustTimeOfDay("09:00"), domain.MustTimeOfDay("12:00")); !errors.As(err, &vErr) {
		t.Fatalf("bad day err = %v, want *ValidationError", err)
	}

	if _, err := r.AddWindow(ctx, provider, domain.Monday, domain.MustTimeOfDay("09:00"), domain.MustTimeOfDay("12:00")); err != nil {
		t.Fatalf("AddWindow error: %v", err)
	}
	if _, err := r.AddWindow(ctx, provider, domain.Monday, domain.MustTimeOfDay("09:00"), domain.MustTimeOfDay("12:00")); !errors.Is(err, domain.ErrDuplicateWindow) {
		t.Fatalf("duplicate err = %v, want %v", err, domain.ErrDuplicateWindow)
	}
	// Same range on another day, or an overlapping but different range, is allowed.
	if _, err := r.AddWindow(ctx, provider, domain.Tuesday, domain.MustTimeOfDay("09:00"), domain.MustTimeOfDay("12:00")); err != nil {
		t.Fatalf("AddWindow other day error: %v", err)
	}
	if _, err := r.AddWindow(ctx, provider, domain.Monday, domain.MustTimeOfDay("10:00"), domain.MustTimeOfDay("13:00")); err != nil {
		t.Fatalf("AddWindow overlapping range error: %v", err)
	}
}

func TestListWindows_OrderedAndRestartable(t *testing.T) {
	ctx := context.Background()
	r, _ := newRegistry(t)
	provider := domain.ProviderActor(providerID)

	add := func(day domain.DayOfWeek, start, end string) {
		t.Helper()
		if _, err := r.AddWindow(ctx, provider, day, domain.MustTimeOfDay(start), domain.MustTimeOfDay(end)); err != nil {
			t.Fatalf("AddWindow error: %v", err)
		}
	}
	add(domain.Friday, "14:00", "17:00")
	add(domain.Monday, "13:00", "15:00")
	add(domain.Monday, "09:00", "12:00")

	first := collect(t, r, providerID)
	if len(first) != 3 {
		t.Fatalf("len(windows) = %d, want 3", len(first))
	}
	if first[0].DayOfWeek != domain.Monday || first[0].StartTime != domain.MustTimeOfDay("09:00") ||
		first[1].StartTime != domain.MustTimeOfDay("13:00") || first[2].DayOfWeek != domain.Friday {
		t.Fatalf("unexpected order: %+v", first)
	}

	add(domain.Sunday, "10:00", "11:00")
	if second := collect(t, r, providerID); len(second) != 4 {
		t.Fatalf("second range len = %d, want 4", len(second))
	}

	// Breaking out early stops iteration.
	n := 0
	for range r.ListWindows(ctx, providerID) {
		n++
		break
	}
	if n != 1 {
		t.Fatalf("iterations after break = %d, want 1", n)
	}

	if got := collect(t, r, otherID); len(got) != 0 {
		t.Fatalf("other provider windows = %d, want 0", len(got))
	}
}

func TestRemoveWindow(t *testing.T) {
	ctx := context.Background()
	r, _ := newRegistry(t)

	w, err := r.AddWindow(ctx, domain.ProviderActor(providerID), domain.Monday, domain.MustTimeOfDay("09:00"), domain.MustTimeOfDay("12:00"))
	if err != nil {
		t.Fatalf("AddWindow error: %v", err)
	}

	if err := r.RemoveWindow(ctx, uuid.New(), domain.ProviderActor(providerID)); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown window err = %v, want %v", err, domain.ErrNotFound)
	}
	if err := r.RemoveWindow(ctx, w.ID, domain.ProviderActor(otherID)); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("foreign provider err = %v, want %v", err, domain.ErrForbidden)
	}
	if err := r.RemoveWindow(ctx, w.ID, domain.CustomerActor(customerID)); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("customer err = %v, want %v", err, domain.ErrForbidden)
	}
	if err := r.RemoveWindow(ctx, w.ID, domain.ProviderActor(providerID)); err != nil {
		t.Fatalf("RemoveWindow error: %v", err)
	}
	if got := collect(t, r, providerID); len(got) != 0 {
		t.Fatalf("windows after remove = %d, want 0", len(got))
	}
}

func TestSetWindowActive(t *testing.T) {
	ctx := context.Background()
	r, _ := newRegistry(t)
	provider := domain.ProviderActor(providerID)
	start, end := domain.MustTimeOfDay("09:00"), domain.MustTimeOfDay("12:00")

	w, err := r.AddWindow(ctx, provider, domain.Monday, start, end)
	if err != nil {
		t.Fatalf("AddWindow error: %v", err)
	}
	if _, err := r.SetWindowActive(ctx, w.ID, provider, false); err != nil {
		t.Fatalf("deactivate error: %v", err)
	}
	// An inactive twin does not block a new active window.
	twin, err := r.AddWindow(ctx, provider, domain.Monday, start, end)
	if err != nil {
		t.Fatalf("AddWindow twin error: %v", err)
	}
	if _, err := r.SetWindowActive(ctx, w.ID, provider, true); !errors.Is(err, domain.ErrDuplicateWindow) {
		t.Fatalf("reactivate err = %v, want %v", err, domain.ErrDuplicateWindow)
	}

	monday := domain.MustDate("2026-03-02")
	ok, err := r.IsWithinAvailability(ctx, providerID, monday, domain.MustTimeOfDay("10:00"), domain.MustTimeOfDay("11:00"))
	if err != nil || !ok {
		t.Fatalf("IsWithinAvailability = %v, %v; want true", ok, err)
	}
	if _, err := r.SetWindowActive(ctx, twin.ID, provider, false); err != nil {
		t.Fatalf("deactivate twin error: %v", err)
	}
	ok, err = r.IsWithinAvailability(ctx, providerID, monday, domain.MustTimeOfDay("10:00"), domain.MustTimeOfDay("11:00"))
	if err != nil || ok {
		t.Fatalf("IsWithinAvailability after deactivation = %v, %v; want false", ok, err)
	}
}

func TestIsWithinAvailability(t *testing.T) {
	ctx := context.Background()
	r, _ := newRegistry(t)
	provider := domain.ProviderActor(providerID)

	if _, err := r.AddWindow(ctx, provider, domain.Monday, domain.MustTimeOfDay("09:00"), domain.MustTimeOfDay("12:00")); err != nil {
		t.Fatalf("AddWindow error: %v", err)
	}
	if _, err := r.AddWindow(ctx, provider, domain.Monday, domain.MustTimeOfDay("12:00"), domain.MustTimeOfDay("15:00")); err != nil {
		t.Fatalf("AddWindow error: %v", err)
	}

	tests := []struct {
		name       string
		date       string
		start, end string
		want       bool
	}{
		{name: "inside", date: "2026-03-02", start: "09:30", end: "10:30", want: true},
		{name: "exactly the window", date: "2026-03-02", start: "09:00", end: "12:00", want: true},
		{name: "spans two adjacent windows", date: "2026-03-02", start: "11:00", end: "13:00", want: false},
		{name: "starts before", date: "2026-03-02", start: "08:30", end: "09:30", want: false},
		{name: "wrong weekday", date: "2026-03-03", start: "09:30", end: "10:30", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.IsWithinAvailability(ctx, providerID, domain.MustDate(tt.date), domain.MustTimeOfDay(tt.start), domain.MustTimeOfDay(tt.end))
			if err != nil {
				t.Fatalf("IsWithinAvailability error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("IsWithinAvailability = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWindowsAreCachedUntilWrite(t *testing.T) {
	ctx := context.Background()
	r, repo := newRegistry(t)
	provider := domain.ProviderActor(providerID)

	if _, err := r.AddWindow(ctx, provider, domain.Monday, domain.MustTimeOfDay("09:00"), domain.MustTimeOfDay("12:00")); err != nil {
		t.Fatalf("AddWindow error: %v", err)
	}
	collect(t, r, providerID)
	collect(t, r, providerID)
	if repo.lists != 1 {
		t.Fatalf("repo lists = %d, want 1 (second read served from cache)", repo.lists)
	}

	if _, err := r.AddWindow(ctx, provider, domain.Friday, domain.MustTimeOfDay("09:00"), domain.MustTimeOfDay("12:00")); err != nil {
		t.Fatalf("AddWindow error: %v", err)
	}
	if got := collect(t, r, providerID); len(got) != 2 {
		t.Fatalf("windows after write = %d, want 2", len(got))
	}
	if repo.lists != 2 {
		t.Fatalf("repo lists = %d, want 2", repo.lists)
	}
}

func TestWindowWriteDuringReadIsNotMaskedByCache(t *testing.T) {
	ctx := context.Background()
	lru, err := cache.NewLRU(16, nil)
	if err != nil {
		t.Fatalf("NewLRU error: %v", err)
	}
	repo := &gatedRepo{
		AvailabilityRepository: memory.New(),
		loaded:                 make(chan struct{}),
		release:                make(chan struct{}),
	}
	r := NewRegistry(repo, lru, nil)

	// 2030-06-10 is a Monday.
	date := domain.MustDate("2030-06-10")
	start, end := domain.MustTimeOfDay("10:00"), domain.MustTimeOfDay("11:00")

	done := make(chan bool, 1)
	go func() {
		ok, err := r.IsWithinAvailability(ctx, providerID, date, start, end)
		if err != nil {
			t.Errorf("IsWithinAvailability error: %v", err)
		}
		done <- ok
	}()

	<-repo.loaded
	if _, err := r.AddWindow(ctx, domain.ProviderActor(providerID), domain.Monday, domain.MustTimeOfDay("09:00"), domain.MustTimeOfDay("12:00")); err != nil {
		t.Fatalf("AddWindow error: %v", err)
	}
	close(repo.release)

	if stale := <-done; stale {
		t.Fatalf("read that started before the write saw the new window")
	}

	ok, err := r.IsWithinAvailability(ctx, providerID, date, start, end)
	if err != nil {
		t.Fatalf("IsWithinAvailability error: %v", err)
	}
	if !ok {
		t.Fatalf("IsWithinAvailability = false after AddWindow, want true")
	}
}

func TestOccurrences(t *testing.T) {
	ctx := context.Background()
	r, _ := newRegistry(t)
	provider := domain.ProviderActor(providerID)

	if _, err := r.AddWindow(ctx, provider, domain.Monday, domain.MustTimeOfDay("09:00"), domain.MustTimeOfDay("12:00")); err != nil {
		t.Fatalf("AddWindow error: %v", err)
	}

	occs, err := r.Occurrences(ctx, providerID, domain.MustDate("2026-03-01"), domain.MustDate("2026-03-16"))
	if err != nil {
		t.Fatalf("Occurrences error: %v", err)
	}
	if len(occs) != 3 {
		t.Fatalf("len(occs) = %d, want 3", len(occs))
	}
	if got := occs[0].Slot.String(); got != "2026-03-02 09:00-12:00" {
		t.Fatalf("first occurrence = %q", got)
	}

	var vErr *domain.ValidationError
	if _, err := r.Occurrences(ctx, providerID, domain.MustDate("2026-03-16"), domain.MustDate("2026-03-01")); !errors.As(err, &vErr) {
		t.Fatalf("reversed range err = %v, want *ValidationError", err)
	}
}
