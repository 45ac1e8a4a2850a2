package render

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"

	"dues/internal/core"
)

// uidNamespace makes event UIDs stable across exports, so calendar clients
// update an expense's event instead of adding a new one.
var uidNamespace = uuid.MustParse("5a0f3c2e-8d6b-4f43-9b1e-2f7c4d9e6a10")

// Calendar builds one all-day recurring event per row, starting at its next
// due date.
func Calendar(rows []core.Row, now time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//dues//Recurring expenses//EN")

	for _, r := range rows {
		event := ical.NewEvent()
		event.Props.SetText(ical.PropUID, EventUID(r.Expense.Name))
		event.Props.SetText(ical.PropSummary, r.Expense.Name)
		event.Props.SetText(ical.PropDescription, fmt.Sprintf("%s expense. Last payment: %s",
			r.Expense.Periodicity, r.LastPaymentDisplay(now.Location())))
		event.Props.SetDate(ical.PropDateTimeStart, r.NextDue.UTC())
		if rule := RecurrenceRule(r.Expense.Periodicity); rule != "" {
			// RECUR values are written raw; SetText would escape the ';'.
			prop := ical.NewProp(ical.PropRecurrenceRule)
			prop.Value = rule
			event.Props.Set(prop)
		}
		event.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())

		cal.Children = append(cal.Children, event.Component)
	}
	return cal
}

// EventUID is the stable UID of an expense's event.
func EventUID(name string) string {
	return uuid.NewSHA1(uidNamespace, []byte(name)).String() + "@dues"
}

// RecurrenceRule maps a periodicity to an RFC 5545 RRULE value.
func RecurrenceRule(p core.Periodicity) string {
	switch {
	case p.StepDays() > 0 && p.StepDays()%7 == 0:
		return weeklyRule(p.StepDays() / 7)
	case p.StepMonths() == 1:
		return "FREQ=MONTHLY"
	case p.StepMonths() > 1:
		return fmt.Sprintf("FREQ=MONTHLY;INTERVAL=%d", p.StepMonths())
	default:
		return ""
	}
}

func weeklyRule(weeks int) string {
	if weeks == 1 {
		return "FREQ=WEEKLY"
	}
	return fmt.Sprintf("FREQ=WEEKLY;INTERVAL=%d", weeks)
}

// WriteCalendar encodes cal as an .ics stream.
func WriteCalendar(w io.Writer, cal *ical.Calendar) error {
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	return nil
}
