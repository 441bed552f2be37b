package core

import (
	"fmt"
	"time"
)

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AddDays shifts d by n days, n may be negative.
func AddDays(d Date, n int) Date {
	return Date{Time: d.AddDate(0, 0, n)}
}

// AddOneMonth moves to the same day of the next month, clamping to the last
// day when the next month is shorter (Jan 31 -> Feb 28/29).
func AddOneMonth(d Date) Date {
	year, month, day := d.Date()
	month++
	if month > time.December {
		month = time.January
		year++
	}
	return NewDate(year, int(month), min(day, DaysIn(year, month)))
}

// AddOneYear moves to the same day of the next year; Feb 29 becomes Feb 28.
func AddOneYear(d Date) Date {
	year, month, day := d.Date()
	year++
	return NewDate(year, int(month), min(day, DaysIn(year, month)))
}

// Advance returns the next occurrence after d for the given frequency.
// Unknown frequencies advance monthly.
func Advance(d Date, f Frequency) Date {
	switch f {
	case Weekly:
		return AddDays(d, 7)
	case Yearly:
		return AddOneYear(d)
	default:
		return AddOneMonth(d)
	}
}

// ISOWeekKey returns the ISO-8601 week label "YYYY-Www", where the year is
// the week-numbering year (2021-01-01 -> "2020-W53").
func ISOWeekKey(d Date) string {
	year, week := d.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}
