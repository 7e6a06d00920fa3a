package commission

import (
	"fmt"
	"time"
)

// =============================================================================
// MONTH - Calendar year-month (the ledger's unit of time)
// =============================================================================

// Month is a calendar year-month. All commission accounting happens at month
// granularity: day-of-month is ignored everywhere except display.
type Month struct {
	Year  int
	Month time.Month
}

// Constructors
func NewMonth(year int, month time.Month) Month {
	return Month{Year: year, Month: month}
}

func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

func CurrentMonth() Month { return MonthOf(time.Now()) }

// ParseMonth parses a YYYY-MM key.
func ParseMonth(key string) (Month, error) {
	t, err := time.Parse("2006-01", key)
	if err != nil {
		return Month{}, fmt.Errorf("invalid month key %q: %w", key, err)
	}
	return MonthOf(t), nil
}

// Key returns the canonical YYYY-MM key. Keys sort lexicographically in
// chronological order.
func (m Month) Key() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (m Month) String() string { return m.Key() }

// Comparison
func (m Month) Before(o Month) bool {
	return m.Year < o.Year || (m.Year == o.Year && m.Month < o.Month)
}
func (m Month) After(o Month) bool         { return o.Before(m) }
func (m Month) Equal(o Month) bool         { return m.Year == o.Year && m.Month == o.Month }
func (m Month) BeforeOrEqual(o Month) bool { return !o.Before(m) }

// Next returns the following calendar month.
func (m Month) Next() Month {
	if m.Month == time.December {
		return Month{Year: m.Year + 1, Month: time.January}
	}
	return Month{Year: m.Year, Month: m.Month + 1}
}

// Start returns the first day of the month at UTC midnight.
func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// MonthsBetween returns the number of whole calendar months from a to b using
// (year, month) difference only. A start on January 31 and an end on
// February 1 still count as one month: day-of-month never participates.
func MonthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}
