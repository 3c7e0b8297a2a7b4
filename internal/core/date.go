// Package core holds the domain types and the aggregation engine for the
// ledger: calendar dates, money, transactions, date windows and the
// bucketing/summary logic that feeds dashboards and exports.
package core

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidDate = errors.New("invalid date")

// Date is a plain calendar date: year, month and day as integers, with no
// time-of-day and no timezone. All bucketing works on Date values directly;
// timestamps are never converted back into dates, which is where the
// original dashboard picked up its off-by-one-day bugs in negative-UTC
// offsets.
type Date struct {
	Year  int
	Month int // 1-12
	Day   int
}

// NewDate builds a Date from its parts without normalization.
// Use Validate to check the result is a real calendar day.
func NewDate(year, month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// ParseDate parses the storage form YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}, nil
}

// DateOf extracts the calendar date of an instant in that instant's
// location. This is the only place a timestamp becomes a Date, and it is
// used solely to resolve "today" at the request boundary.
func DateOf(t time.Time) Date {
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
}

func (d Date) Validate() error {
	if d.Year < 1 || d.Month < 1 || d.Month > 12 {
		return ErrInvalidDate
	}
	if d.Day < 1 || d.Day > DaysInMonth(d.Year, d.Month) {
		return ErrInvalidDate
	}
	return nil
}

// String returns the fixed storage form YYYY-MM-DD. String order equals
// calendar order, which the repository range queries rely on.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Format renders the date with a time layout, e.g. "02/01/2006" for
// reports. UTC here is calendar arithmetic only, not an instant.
func (d Date) Format(layout string) string {
	return d.toTime().Format(layout)
}

// AddDays returns the date n days later (earlier for negative n).
func (d Date) AddDays(n int) Date {
	t := d.toTime().AddDate(0, 0, n)
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
}

// Compare orders two dates: -1 if d is before o, 0 if equal, 1 if after.
func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return sign(d.Year - o.Year)
	case d.Month != o.Month:
		return sign(d.Month - o.Month)
	default:
		return sign(d.Day - o.Day)
	}
}

func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }
func (d Date) After(o Date) bool  { return d.Compare(o) > 0 }

func (d Date) IsZero() bool { return d == Date{} }

// DaysInMonth returns the true length of a month, leap years included.
func DaysInMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func (d Date) toTime() time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
}

func sign(n int) int {
	if n < 0 {
		return -1
	}
	if n > 0 {
		return 1
	}
	return 0
}
