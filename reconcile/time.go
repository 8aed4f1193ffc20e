package reconcile

import (
	"fmt"
	"time"
)

// =============================================================================
// REF DATE - Calendar date without time-of-day (reconciliation granularity)
// =============================================================================

// RefDate is a calendar date in the field teams' local calendar. It is a
// comparable value type so it can serve inside natural keys and map keys.
type RefDate struct {
	Year  int
	Month time.Month
	Day   int
}

func NewRefDate(year int, month time.Month, day int) RefDate {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf truncates a timestamp to its calendar date.
func DateOf(t time.Time) RefDate {
	return RefDate{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

func Today() RefDate { return DateOf(time.Now()) }

// ParseRefDate parses YYYY-MM-DD.
func ParseRefDate(s string) (RefDate, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return RefDate{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return DateOf(t), nil
}

func (d RefDate) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d RefDate) String() string { return d.Time().Format("2006-01-02") }

func (d RefDate) IsZero() bool { return d == RefDate{} }

// Comparison
func (d RefDate) Before(other RefDate) bool { return d.Time().Before(other.Time()) }
func (d RefDate) After(other RefDate) bool  { return d.Time().After(other.Time()) }
func (d RefDate) Equal(other RefDate) bool  { return d == other }

// Arithmetic
func (d RefDate) AddDays(n int) RefDate { return DateOf(d.Time().AddDate(0, 0, n)) }

// DaysBetween returns the number of whole days from d to other.
func (d RefDate) DaysBetween(other RefDate) int {
	return int(other.Time().Sub(d.Time()).Hours() / 24)
}

// DateRange enumerates every date in [start, end] inclusive, oldest first.
// An inverted range yields nil.
func DateRange(start, end RefDate) []RefDate {
	if end.Before(start) {
		return nil
	}
	var dates []RefDate
	for d := start; !d.After(end); d = d.AddDays(1) {
		dates = append(dates, d)
	}
	return dates
}

// Period is an inclusive date range.
type Period struct {
	Start RefDate
	End   RefDate
}

func (p Period) Valid() bool { return !p.End.Before(p.Start) }

func (p Period) Days() int { return p.Start.DaysBetween(p.End) + 1 }

func (p Period) Contains(d RefDate) bool { return !d.Before(p.Start) && !d.After(p.End) }
