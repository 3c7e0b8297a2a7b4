package core

import (
	"errors"
	"fmt"
)

var ErrInvalidWindow = errors.New("invalid window")

// DateWindow is an inclusive, contiguous range of calendar dates with the
// ordered date sequence materialized, oldest first.
type DateWindow struct {
	Start Date
	End   Date
	Dates []Date
}

// SingleDay is the window containing just the reference date.
func SingleDay(ref Date) DateWindow {
	return DateWindow{Start: ref, End: ref, Dates: []Date{ref}}
}

// TrailingDays is the n-day window ending on the reference date, so
// TrailingDays(2024-01-01, 7) spans 2023-12-26 through 2024-01-01.
func TrailingDays(ref Date, n int) (DateWindow, error) {
	if n <= 0 {
		return DateWindow{}, fmt.Errorf("%w: trailing days %d", ErrInvalidWindow, n)
	}
	if err := ref.Validate(); err != nil {
		return DateWindow{}, fmt.Errorf("%w: reference %v", ErrInvalidWindow, ref)
	}
	start := ref.AddDays(-(n - 1))
	dates := make([]Date, n)
	for i := range dates {
		dates[i] = start.AddDays(i)
	}
	return DateWindow{Start: start, End: ref, Dates: dates}, nil
}

// CalendarMonth is the full month window for an integer year and month.
// Year and month arrive as plain integers on purpose: deriving them from a
// parsed instant shifts the month in negative-UTC-offset locales.
func CalendarMonth(year, month int) (DateWindow, error) {
	if year < 1 || month < 1 || month > 12 {
		return DateWindow{}, fmt.Errorf("%w: year-month %04d-%02d", ErrInvalidWindow, year, month)
	}
	length := DaysInMonth(year, month)
	dates := make([]Date, length)
	for i := range dates {
		dates[i] = Date{Year: year, Month: month, Day: i + 1}
	}
	return DateWindow{Start: dates[0], End: dates[length-1], Dates: dates}, nil
}

// Contains reports whether d falls inside the window.
func (w DateWindow) Contains(d Date) bool {
	return !d.Before(w.Start) && !d.After(w.End)
}

// Len is the number of days in the window.
func (w DateWindow) Len() int { return len(w.Dates) }
