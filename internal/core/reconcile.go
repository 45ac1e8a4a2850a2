package core

import (
	"math"
	"sort"
	"time"
)

// NotPaid is shown in place of a payment date for expenses never paid.
const NotPaid = "Not paid"

// Row is an expense reconciled against the present instant. It is never
// stored; every read recomputes it.
type Row struct {
	Expense     Expense
	LastPayment *Payment
	NextDue     time.Time
	DaysLeft    int
	IsPaid      bool
}

// Project reconciles one entry at now. The result depends on the instant now
// denotes, not on its location.
func Project(e Entry, now time.Time) (Row, error) {
	next, err := NextDue(e.Expense.DueDateReference, now, e.Expense.Periodicity)
	if err != nil {
		return Row{}, err
	}

	row := Row{
		Expense:     e.Expense,
		LastPayment: e.LastPayment,
		NextDue:     next,
		DaysLeft:    daysBetween(now, next),
	}
	// A payment made against an earlier occurrence does not settle this one.
	if e.LastPayment != nil && e.LastPayment.DueDateOfExpense.Equal(next) {
		row.IsPaid = true
	}
	return row, nil
}

// ProjectAll reconciles entries and orders them by next due instant, then name.
func ProjectAll(entries []Entry, now time.Time) ([]Row, error) {
	rows := make([]Row, 0, len(entries))
	for _, e := range entries {
		row, err := Project(e, now)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].NextDue.Equal(rows[j].NextDue) {
			return rows[i].Expense.Name < rows[j].Expense.Name
		}
		return rows[i].NextDue.Before(rows[j].NextDue)
	})
	return rows, nil
}

// LastPaymentDisplay returns the paid instant of the last payment in loc,
// or NotPaid.
func (r Row) LastPaymentDisplay(loc *time.Location) string {
	if r.LastPayment == nil {
		return NotPaid
	}
	return r.LastPayment.PaidAt.In(loc).Format(time.RFC1123Z)
}

// Severity bands the row for display. Paid rows are always normal.
func (r Row) Severity() Severity {
	if r.IsPaid {
		return SeverityNormal
	}
	return Band(r.Expense.Periodicity, r.DaysLeft)
}

// daysBetween counts whole days from a to b, rounding toward negative infinity.
func daysBetween(a, b time.Time) int {
	return int(math.Floor(b.Sub(a).Hours() / 24))
}
