package clock

import (
	"testing"
	"time"
)

func TestTodayUsesClockLocation(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	// 2026-03-01 20:00 UTC is already 2026-03-02 in UTC+10.
	c := Fixed{At: time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC).In(loc)}

	got := Today(c)
	want := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("Today() = %v, want %v", got, want)
	}
}

func TestLoadLocationDefaultsToUTC(t *testing.T) {
	loc, err := LoadLocation("")
	if err != nil {
		t.Fatalf("LoadLocation error: %v", err)
	}
	if loc != time.UTC {
		t.Fatalf("loc = %v, want UTC", loc)
	}
	if NewSystem(nil).Now().Location() != time.UTC {
		t.Fatalf("NewSystem(nil) should report UTC")
	}
}
