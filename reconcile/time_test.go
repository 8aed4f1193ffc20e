package reconcile_test

import (
	"testing"
	"time"

	"github.com/voltgrid/shift-engine/reconcile"
)

func TestParseRefDate(t *testing.T) {
	date, err := reconcile.ParseRefDate("2024-02-29")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if date != reconcile.NewRefDate(2024, time.February, 29) {
		t.Errorf("unexpected date: %v", date)
	}
	if date.String() != "2024-02-29" {
		t.Errorf("round trip gave %q", date.String())
	}

	for _, raw := range []string{"", "29/02/2024", "2024-13-01", "2023-02-29"} {
		if _, err := reconcile.ParseRefDate(raw); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
}

func TestRefDate_AddDays_CrossesMonthBoundary(t *testing.T) {
	date := reconcile.NewRefDate(2024, time.January, 30)

	if got := date.AddDays(2); got != reconcile.NewRefDate(2024, time.February, 1) {
		t.Errorf("got %v", got)
	}
	if got := date.AddDays(-30); got != reconcile.NewRefDate(2023, time.December, 31) {
		t.Errorf("got %v", got)
	}
}

func TestDateRange(t *testing.T) {
	start := reconcile.NewRefDate(2024, time.March, 30)
	end := reconcile.NewRefDate(2024, time.April, 2)

	dates := reconcile.DateRange(start, end)
	if len(dates) != 4 {
		t.Fatalf("expected 4 dates, got %d", len(dates))
	}
	if dates[0] != start || dates[3] != end {
		t.Errorf("unexpected bounds: %v .. %v", dates[0], dates[3])
	}

	if got := reconcile.DateRange(end, start); got != nil {
		t.Errorf("inverted range should be empty, got %v", got)
	}
	if got := reconcile.DateRange(start, start); len(got) != 1 {
		t.Errorf("single-day range should have one date, got %v", got)
	}
}

func TestPeriod(t *testing.T) {
	p := reconcile.Period{
		Start: reconcile.NewRefDate(2024, time.March, 1),
		End:   reconcile.NewRefDate(2024, time.March, 31),
	}

	if !p.Valid() {
		t.Error("expected valid period")
	}
	if p.Days() != 31 {
		t.Errorf("expected 31 days, got %d", p.Days())
	}
	if !p.Contains(reconcile.NewRefDate(2024, time.March, 15)) {
		t.Error("expected date inside period")
	}
	if p.Contains(reconcile.NewRefDate(2024, time.April, 1)) {
		t.Error("expected date outside period")
	}

	inverted := reconcile.Period{Start: p.End, End: p.Start}
	if inverted.Valid() {
		t.Error("expected inverted period to be invalid")
	}
}
