package core

import (
	"errors"
	"math/rand"
	"testing"
	"time"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return v
}

func TestNextDue_KnownDates(t *testing.T) {
	tests := []struct {
		name      string
		reference string
		now       string
		p         Periodicity
		want      string
	}{
		{"weekly far past", "2012-05-12T00:00:01Z", "2029-03-21T00:00:01Z", Weekly, "2029-03-24T00:00:01Z"},
		{"monthly far past", "2012-05-12T00:00:01Z", "2029-03-21T00:00:01Z", Monthly, "2029-04-12T00:00:01Z"},
		{"reference in future", "2030-01-01T00:00:00Z", "2029-03-21T00:00:01Z", Monthly, "2030-01-01T00:00:00Z"},
		{"now on occurrence", "2024-01-15T00:00:00Z", "2024-03-15T00:00:00Z", Monthly, "2024-03-15T00:00:00Z"},
		{"now equals reference", "2024-01-15T00:00:00Z", "2024-01-15T00:00:00Z", Weekly, "2024-01-15T00:00:00Z"},
		{"one second after occurrence", "2024-01-15T00:00:00Z", "2024-03-15T00:00:01Z", Monthly, "2024-04-15T00:00:00Z"},
		{"bimonthly", "2024-01-10T08:00:00Z", "2024-04-01T00:00:00Z", Bimonthly, "2024-05-10T08:00:00Z"},
		{"trimonthly", "2020-02-01T00:00:00Z", "2024-06-02T00:00:00Z", Trimonthly, "2024-08-01T00:00:00Z"},
		{"quarterly is four months", "2020-01-20T00:00:00Z", "2024-02-01T00:00:00Z", Quarterly, "2024-05-20T00:00:00Z"},
		{"biannual", "2001-03-03T00:00:00Z", "2024-10-01T00:00:00Z", Biannual, "2025-03-03T00:00:00Z"},
		{"legacy biweekly", "2024-01-01T00:00:00Z", "2024-01-20T00:00:00Z", Biweekly, "2024-01-29T00:00:00Z"},
		{"rent paid early", "2024-01-15T00:00:00Z", "2024-02-10T00:00:00Z", Monthly, "2024-02-15T00:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextDue(mustTime(t, tt.reference), mustTime(t, tt.now), tt.p)
			if err != nil {
				t.Fatalf("NextDue() error = %v", err)
			}
			if want := mustTime(t, tt.want); !got.Equal(want) {
				t.Errorf("NextDue() = %s, want %s", got.Format(time.RFC3339), want.Format(time.RFC3339))
			}
		})
	}
}

// naiveNextDue walks one calendar step at a time with no shortcuts.
func naiveNextDue(reference, now time.Time, p Periodicity) time.Time {
	t := reference
	for t.Before(now) {
		if p.IsDayBased() {
			t = t.AddDate(0, 0, p.StepDays())
		} else {
			t = t.AddDate(0, p.StepMonths(), 0)
		}
	}
	return t
}

func allPeriodicities() []Periodicity {
	return append(Periodicities(), Biweekly)
}

func TestNextDue_MatchesNaiveWalk(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	lo := time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC).Unix()
	hi := time.Date(2040, 1, 1, 0, 0, 0, 0, time.UTC).Unix()

	for i := 0; i < 200; i++ {
		reference := time.Unix(lo+r.Int63n(hi-lo), 0).UTC()
		now := time.Unix(lo+r.Int63n(hi-lo), 0).UTC()

		for _, p := range allPeriodicities() {
			ref := reference
			if !p.IsDayBased() && ref.Day() > MaxMonthDay {
				ref = ref.AddDate(0, 0, -3)
			}

			got, err := NextDue(ref, now, p)
			if err != nil {
				t.Fatalf("NextDue(%s, %s, %s) error = %v", ref, now, p, err)
			}
			plain, err := nextDue(ref, now, p, false)
			if err != nil {
				t.Fatalf("nextDue without coarse jump error = %v", err)
			}
			want := naiveNextDue(ref, now, p)

			if !got.Equal(want) || !plain.Equal(want) {
				t.Fatalf("%s ref=%s now=%s: got %s, without jump %s, naive %s", p, ref, now, got, plain, want)
			}
		}
	}
}

func TestNextDue_Properties(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 300; i++ {
		now := base.Add(time.Duration(r.Int63n(int64(400 * 24 * time.Hour))))
		ref := time.Date(1980+r.Intn(45), time.Month(1+r.Intn(12)), 1+r.Intn(28), r.Intn(24), r.Intn(60), r.Intn(60), 0, time.UTC)

		for _, p := range allPeriodicities() {
			next, err := NextDue(ref, now, p)
			if err != nil {
				t.Fatalf("NextDue error = %v", err)
			}
			if ref.After(now) {
				if !next.Equal(ref) {
					t.Fatalf("%s: future reference %s moved to %s", p, ref, next)
				}
				continue
			}
			if next.Before(now) {
				t.Fatalf("%s: next %s is before now %s", p, next, now)
			}
			var prev time.Time
			if p.IsDayBased() {
				prev = next.AddDate(0, 0, -p.StepDays())
			} else {
				prev = next.AddDate(0, -p.StepMonths(), 0)
			}
			if !next.Equal(ref) && !prev.Before(now) {
				t.Fatalf("%s: earlier occurrence %s also satisfies now %s", p, prev, now)
			}

			again, err := NextDue(next, now, p)
			if err != nil {
				t.Fatalf("NextDue error = %v", err)
			}
			if !again.Equal(next) {
				t.Fatalf("%s: not a fixed point: %s -> %s", p, next, again)
			}
		}
	}
}

func TestCoarseDays_PreservesWeekday(t *testing.T) {
	r := rand.New(rand.NewSource(99))
	for i := 0; i < 500; i++ {
		ref := time.Date(1900+r.Intn(100), time.Month(1+r.Intn(12)), 1+r.Intn(31), 0, 0, 1, 0, time.UTC)
		years := 1 + r.Intn(120)

		k, ok := coarseDays(ref, years, 7)
		if !ok {
			t.Fatalf("no weekly match for %s shifted %d years", ref, years)
		}
		got, err := Occurrence(ref, Weekly, k)
		if err != nil {
			t.Fatalf("Occurrence error = %v", err)
		}
		if got.Weekday() != ref.Weekday() {
			t.Fatalf("weekday changed: %s (%s) -> %s (%s)", ref, ref.Weekday(), got, got.Weekday())
		}
		if got.After(ref.AddDate(years, 0, 0)) {
			t.Fatalf("jump overshot: %s after %s", got, ref.AddDate(years, 0, 0))
		}
	}
}

func TestOccurrence_ClampsFromAnchor(t *testing.T) {
	ref := time.Date(2024, 1, 31, 9, 0, 0, 0, time.UTC)
	want := []time.Time{
		time.Date(2024, 1, 31, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 29, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 31, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 30, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 31, 9, 0, 0, 0, time.UTC),
	}
	for k, w := range want {
		got, err := Occurrence(ref, Monthly, k)
		if err != nil {
			t.Fatalf("Occurrence(%d) error = %v", k, err)
		}
		if !got.Equal(w) {
			t.Errorf("Occurrence(%d) = %s, want %s", k, got, w)
		}
	}
}

func TestNextDue_OutOfRange(t *testing.T) {
	ref := time.Date(9999, 11, 20, 0, 0, 0, 0, time.UTC)
	now := time.Date(9999, 12, 25, 0, 0, 0, 0, time.UTC)

	_, err := NextDue(ref, now, Monthly)
	if !errors.Is(err, ErrDateOutOfRange) {
		t.Fatalf("NextDue() error = %v, want ErrDateOutOfRange", err)
	}
}

func TestNextDue_UnknownPeriodicity(t *testing.T) {
	_, err := NextDue(time.Now(), time.Now(), Periodicity("Daily"))
	if !errors.Is(err, ErrUnknownPeriodicity) {
		t.Fatalf("NextDue() error = %v, want ErrUnknownPeriodicity", err)
	}
}

func TestNextDue_IgnoresLocations(t *testing.T) {
	ref := mustTime(t, "2024-02-29T23:30:00Z")
	now := mustTime(t, "2024-05-15T10:00:00Z")
	want := mustTime(t, "2024-05-29T23:30:00Z")

	// In UTC+2 the reference falls on March 1st; the schedule must not follow it.
	plus2 := time.FixedZone("UTC+2", 2*60*60)
	minus5 := time.FixedZone("UTC-5", -5*60*60)

	for _, loc := range []*time.Location{time.UTC, plus2, minus5} {
		t.Run(loc.String(), func(t *testing.T) {
			got, err := NextDue(ref.In(loc), now.In(loc), Monthly)
			if err != nil {
				t.Fatalf("NextDue() error = %v", err)
			}
			if !got.Equal(want) || got.Location() != time.UTC {
				t.Errorf("NextDue() = %s, want %s in UTC", got, want.Format(time.RFC3339))
			}
		})
	}
}
