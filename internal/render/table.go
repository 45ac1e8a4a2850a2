// Package render presents reconciled expenses: a terminal table, an Excel
// workbook and an iCalendar feed.
package render

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"dues/internal/core"
)

// DateLayout is how due dates are printed.
const DateLayout = "Mon 2006-01-02"

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#87CEEB")).Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	redStyle    = cellStyle.Foreground(lipgloss.Color("#f38ba8")).Bold(true)
	yellowStyle = cellStyle.Foreground(lipgloss.Color("#f9e2af"))
	greenStyle  = cellStyle.Foreground(lipgloss.Color("#a6e3a1"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#7f849c"))
)

// DueDate prints a due instant as a calendar date. Schedules are computed in
// UTC, so the date is read there whatever the display zone.
func DueDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// Columns shared by every tabular export.
var Columns = []string{"Name", "Periodicity", "Next due", "Days left", "Status", "Last payment"}

// Status is the human label of a row.
func Status(r core.Row) string {
	switch {
	case r.IsPaid:
		return "Paid"
	case r.DaysLeft < 0:
		return "Overdue"
	default:
		return "Due"
	}
}

// Record is the cell text of a row, in Columns order.
func Record(r core.Row, loc *time.Location) []string {
	return []string{
		r.Expense.Name,
		r.Expense.Periodicity.String(),
		DueDate(r.NextDue),
		strconv.Itoa(r.DaysLeft),
		Status(r),
		r.LastPaymentDisplay(loc),
	}
}

// Table writes rows as a bordered table. Days left is colored by severity and
// paid rows are green.
func Table(w io.Writer, rows []core.Row, loc *time.Location) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, mutedStyle.Render("No expenses yet."))
		return err
	}

	records := make([][]string, len(rows))
	for i, r := range rows {
		records[i] = Record(r, loc)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		Headers(Columns...).
		Rows(records...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row < 0 || row >= len(rows) {
				return cellStyle
			}
			r := rows[row]
			if r.IsPaid && col == 4 {
				return greenStyle
			}
			if col != 3 {
				return cellStyle
			}
			switch r.Severity() {
			case core.SeverityRed:
				return redStyle
			case core.SeverityYellow:
				return yellowStyle
			default:
				return cellStyle
			}
		})

	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// History writes one expense and its payments, newest first.
func History(w io.Writer, e core.Expense, payments []core.Payment, loc *time.Location) error {
	title := headerStyle.Render(fmt.Sprintf("%s (%s since %s)",
		e.Name, e.Periodicity, DueDate(e.DueDateReference)))
	if _, err := fmt.Fprintln(w, title); err != nil {
		return err
	}
	if len(payments) == 0 {
		_, err := fmt.Fprintln(w, mutedStyle.Render(core.NotPaid))
		return err
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		Headers("Paid at", "Settles due date").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, p := range payments {
		t.Row(p.PaidAt.In(loc).Format(time.RFC1123Z), DueDate(p.DueDateOfExpense))
	}

	_, err := fmt.Fprintln(w, t.Render())
	return err
}
