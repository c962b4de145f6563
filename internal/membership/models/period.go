package models

import (
	"time"

	dErrors "cairn/pkg/domain-errors"
)

// ValidityPeriod is a pure date-range value. End is optional; an open
// period runs indefinitely.
//
// Invariants:
//   - Start <= End when End is present
//   - comparisons use calendar dates, not instants
type ValidityPeriod struct {
	Start time.Time
	End   *time.Time
}

// NewValidityPeriod constructs a period, rejecting malformed ranges.
func NewValidityPeriod(start time.Time, end *time.Time) (ValidityPeriod, error) {
	start = DateOf(start)
	if end != nil {
		e := DateOf(*end)
		if start.After(e) {
			return ValidityPeriod{}, dErrors.New(dErrors.CodeInvariantViolation, "validity period start must not be after end")
		}
		end = &e
	}
	return ValidityPeriod{Start: start, End: end}, nil
}

// OpenPeriod constructs a period with no end date.
func OpenPeriod(start time.Time) ValidityPeriod {
	return ValidityPeriod{Start: DateOf(start)}
}

// Covers reports whether the date falls inside the period (inclusive on
// both ends).
func (p ValidityPeriod) Covers(d time.Time) bool {
	d = DateOf(d)
	if d.Before(p.Start) {
		return false
	}
	if p.End != nil && d.After(*p.End) {
		return false
	}
	return true
}

// Overlaps reports whether the two periods share at least one day.
func (p ValidityPeriod) Overlaps(other ValidityPeriod) bool {
	if p.End != nil && other.Start.After(*p.End) {
		return false
	}
	if other.End != nil && p.Start.After(*other.End) {
		return false
	}
	return true
}

// Open reports whether the period has no end date.
func (p ValidityPeriod) Open() bool {
	return p.End == nil
}

// DurationYears returns the fractional number of years between the
// period start and asOf, using actual day counts. The fractional part
// divides remaining days by 366 when asOf falls in a leap year, 365
// otherwise.
func (p ValidityPeriod) DurationYears(asOf time.Time) float64 {
	asOf = DateOf(asOf)
	if asOf.Before(p.Start) {
		return 0
	}

	years := asOf.Year() - p.Start.Year()
	anchor := p.Start.AddDate(years, 0, 0)
	if anchor.After(asOf) {
		years--
		anchor = p.Start.AddDate(years, 0, 0)
	}

	denominator := 365.0
	if isLeapYear(asOf.Year()) {
		denominator = 366.0
	}
	days := asOf.Sub(anchor).Hours() / 24

	return float64(years) + days/denominator
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DateOf truncates an instant to its calendar date in UTC.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// StartOfDay is the first instant of the date's calendar day.
func StartOfDay(t time.Time) time.Time {
	return DateOf(t)
}

// EndOfDay is the last instant of the date's calendar day.
func EndOfDay(t time.Time) time.Time {
	return DateOf(t).Add(24*time.Hour - time.Nanosecond)
}

// YearEnd is December 31 of the given calendar year.
func YearEnd(year int) time.Time {
	return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
}

// YearStart is January 1 of the given calendar year.
func YearStart(year int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
}
