package core

import (
	"fmt"
	"math"
	"time"
)

// maxYear is the last year an occurrence may fall in. Stores persist instants
// as RFC 3339 text, which cannot represent later years.
const maxYear = 9999

// NextDue returns the first occurrence of the schedule anchored at reference
// that is not before now. A reference in the future is returned unchanged.
//
// Calendar arithmetic happens in UTC whatever the locations of the
// arguments, so every reader of a stored expense sees the same occurrences.
// The result is in UTC.
//
// The cost does not depend on how far reference lies in the past: a coarse
// jump moves to the year before now, then single steps finish the walk.
func NextDue(reference, now time.Time, p Periodicity) (time.Time, error) {
	return nextDue(reference, now, p, true)
}

func nextDue(reference, now time.Time, p Periodicity, coarse bool) (time.Time, error) {
	s, ok := steps[p]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownPeriodicity, string(p))
	}
	reference = reference.UTC()
	if reference.After(now) {
		return reference, nil
	}

	k := 0
	if years := now.Year() - reference.Year() - 1; coarse && years > 0 {
		if s.months > 0 {
			// Every month step divides 12, so whole years are whole steps.
			k = years * 12 / s.months
		} else if j, ok := coarseDays(reference, years, s.days); ok {
			k = j
		}
	}

	for {
		t, err := Occurrence(reference, p, k)
		if err != nil {
			return time.Time{}, err
		}
		if !t.Before(now) {
			return t, nil
		}
		k++
	}
}

// coarseDays finds the occurrence index closest to, and not after, reference
// shifted by years. Shifting the year moves the weekday, so the days just
// before the shifted date are searched for one on the schedule.
func coarseDays(reference time.Time, years, stepDays int) (int, bool) {
	shifted := reference.AddDate(years, 0, 0)
	base := civilDay(reference)
	for d := 0; d < stepDays; d++ {
		diff := civilDay(shifted.AddDate(0, 0, -d)) - base
		if diff >= 0 && diff%stepDays == 0 {
			return diff / stepDays, true
		}
	}
	return 0, false
}

// Occurrence returns the k-th occurrence of the schedule anchored at
// reference, computed in UTC; k == 0 is the reference itself.
//
// Month steps are always taken from the anchor and clamp the day to the end
// of shorter months, so a clamped occurrence never shifts later ones.
func Occurrence(reference time.Time, p Periodicity, k int) (time.Time, error) {
	s, ok := steps[p]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownPeriodicity, string(p))
	}
	if k < 0 {
		return time.Time{}, fmt.Errorf("negative occurrence index %d", k)
	}
	if k > math.MaxInt32 {
		return time.Time{}, ErrDateOutOfRange
	}

	reference = reference.UTC()
	var t time.Time
	if s.days > 0 {
		t = reference.AddDate(0, 0, k*s.days)
	} else {
		t = addMonthsClamped(reference, k*s.months)
	}
	if t.Year() > maxYear || t.Before(reference) {
		return time.Time{}, fmt.Errorf("%w: %d steps of %s from %s", ErrDateOutOfRange, k, p, reference.Format(time.RFC3339))
	}
	return t, nil
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()

	total := int(m) - 1 + months
	year := y + floorDiv(total, 12)
	month := time.Month(total - floorDiv(total, 12)*12 + 1)

	if last := daysIn(year, month); d > last {
		d = last
	}
	return time.Date(year, month, d, hh, mm, ss, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// civilDay numbers calendar dates consecutively, ignoring the clock.
func civilDay(t time.Time) int {
	y, m, d := t.Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}
