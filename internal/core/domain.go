package core

import (
	"errors"
	"strings"
	"time"
)

// MaxNameLength bounds expense names, which double as foreign keys.
const MaxNameLength = 200

// MaxMonthDay is the last day-of-month accepted for month-based periodicities.
// Later days do not exist in every month.
const MaxMonthDay = 28

type (
	// Expense is a recurring obligation anchored at DueDateReference.
	Expense struct {
		ID               int64
		CreatedAt        time.Time
		Name             string
		Periodicity      Periodicity
		DueDateReference time.Time
	}

	NewExpense struct {
		CreatedAt        time.Time
		Name             string
		Periodicity      Periodicity
		DueDateReference time.Time
	}

	// Payment records that an expense was paid at PaidAt, settling the
	// occurrence due at DueDateOfExpense.
	Payment struct {
		ID               int64
		CreatedAt        time.Time
		PaidAt           time.Time
		ExpenseName      string
		DueDateOfExpense time.Time
	}

	NewPayment struct {
		CreatedAt        time.Time
		PaidAt           time.Time
		ExpenseName      string
		DueDateOfExpense time.Time
	}

	// Entry pairs an expense with its most recent payment, if any.
	Entry struct {
		Expense     Expense
		LastPayment *Payment
	}
)

var (
	ErrEmptyName          = errors.New("empty expense name")
	ErrNameTooLong        = errors.New("expense name too long (max 200 characters)")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidDayOfMonth  = errors.New("day of month must be at most 28 for this periodicity")
	ErrUnknownPeriodicity = errors.New("unknown periodicity")
	ErrLegacyPeriodicity  = errors.New("periodicity is no longer supported for new expenses")
	ErrDateOutOfRange     = errors.New("date out of representable range")
	ErrExpenseNotFound    = errors.New("expense does not exist")
	ErrDuplicateExpense   = errors.New("expense already exists")
)

// Instant normalizes t to the precision and zone every store round-trips
// exactly: UTC, whole microseconds.
func Instant(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// Validate checks a new expense before it is stored.
func (e NewExpense) Validate() error {
	name := strings.TrimSpace(e.Name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > MaxNameLength {
		return ErrNameTooLong
	}
	if err := e.Periodicity.ValidForCreate(); err != nil {
		return err
	}
	if e.DueDateReference.IsZero() {
		return ErrInvalidDate
	}
	if !e.Periodicity.IsDayBased() && e.DueDateReference.UTC().Day() > MaxMonthDay {
		return ErrInvalidDayOfMonth
	}
	return nil
}

func (p NewPayment) Validate() error {
	if strings.TrimSpace(p.ExpenseName) == "" {
		return ErrEmptyName
	}
	if p.PaidAt.IsZero() || p.DueDateOfExpense.IsZero() {
		return ErrInvalidDate
	}
	return nil
}
