package core

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	Weekly     Periodicity = "Weekly"
	Monthly    Periodicity = "Monthly"
	Bimonthly  Periodicity = "Bimonthly"
	Trimonthly Periodicity = "Trimonthly"
	Quarterly  Periodicity = "Quarterly"
	Biannual   Periodicity = "Biannual"

	// Biweekly only appears in databases written by older schema versions.
	Biweekly Periodicity = "Biweekly"
)

// Periodicity is the calendar cadence of an expense. Its string value is also
// its storage form.
type Periodicity string

// step is a fixed calendar increment: either whole days or whole months.
type step struct {
	days   int
	months int
}

var steps = map[Periodicity]step{
	Weekly:     {days: 7},
	Biweekly:   {days: 14},
	Monthly:    {months: 1},
	Bimonthly:  {months: 2},
	Trimonthly: {months: 3},
	Quarterly:  {months: 4},
	Biannual:   {months: 6},
}

// Periodicities lists the values accepted for new expenses, shortest first.
func Periodicities() []Periodicity {
	return []Periodicity{Weekly, Monthly, Bimonthly, Trimonthly, Quarterly, Biannual}
}

// ParsePeriodicity maps a stored string to its Periodicity. Matching is exact.
func ParsePeriodicity(s string) (Periodicity, error) {
	p := Periodicity(s)
	if _, ok := steps[p]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPeriodicity, s)
	}
	return p, nil
}

// ParsePeriodicityInput is the lenient variant used for user input:
// "monthly", "MONTHLY" and "Monthly" are all accepted.
func ParsePeriodicityInput(s string) (Periodicity, error) {
	// A Caser keeps state and must not be shared between goroutines.
	caser := cases.Title(language.English)
	return ParsePeriodicity(caser.String(strings.ToLower(strings.TrimSpace(s))))
}

func (p Periodicity) String() string {
	return string(p)
}

// Valid reports whether p is a known periodicity, legacy values included.
func (p Periodicity) Valid() bool {
	_, ok := steps[p]
	return ok
}

// ValidForCreate rejects unknown and legacy periodicities.
func (p Periodicity) ValidForCreate() error {
	if !p.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownPeriodicity, string(p))
	}
	if p == Biweekly {
		return fmt.Errorf("%w: %s", ErrLegacyPeriodicity, p)
	}
	return nil
}

// IsDayBased reports whether the step is a whole number of days.
func (p Periodicity) IsDayBased() bool {
	return steps[p].days > 0
}

// StepDays returns the step length in days for day-based periodicities, 0 otherwise.
func (p Periodicity) StepDays() int {
	return steps[p].days
}

// StepMonths returns the step length in months for month-based periodicities, 0 otherwise.
func (p Periodicity) StepMonths() int {
	return steps[p].months
}

// Scan implements sql.Scanner.
func (p *Periodicity) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("%w: unsupported type %T", ErrUnknownPeriodicity, src)
	}
	parsed, err := ParsePeriodicity(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Value implements driver.Valuer.
func (p Periodicity) Value() (driver.Value, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPeriodicity, string(p))
	}
	return string(p), nil
}
