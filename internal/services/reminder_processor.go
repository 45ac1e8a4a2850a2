package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"dues/internal/core"
	"dues/internal/log"
)

// maxConcurrentPublishes bounds in-flight reminder publishes.
const maxConcurrentPublishes = 4

// ReminderProcessor turns unpaid rows that are close to or past their due
// date into reminders.
type ReminderProcessor struct {
	expenses  *ExpenseService
	publisher Publisher
}

// NewReminderProcessor creates a processor. With a nil publisher reminders
// are only logged.
func NewReminderProcessor(expenses *ExpenseService, publisher Publisher) *ReminderProcessor {
	return &ReminderProcessor{
		expenses:  expenses,
		publisher: publisher,
	}
}

// Process reconciles all expenses at now and emits one reminder per unpaid
// red or yellow row. It returns the number of reminders emitted.
func (p *ReminderProcessor) Process(ctx context.Context, now time.Time) (int, error) {
	if p.expenses == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	rows, err := p.expenses.List(ctx, now)
	if err != nil {
		return 0, err
	}

	due := Reminders(rows)
	slog.InfoContext(ctx, "Processing reminders",
		"total", len(rows),
		"due", len(due),
		"processing_date", now.Format("2006-01-02"))

	var (
		g    errgroup.Group
		sent atomic.Int64
	)
	g.SetLimit(maxConcurrentPublishes)
	for _, r := range due {
		if p.publisher == nil {
			slog.WarnContext(ctx, "Expense due",
				log.NewFields().WithOperation(log.OpRemind).WithRow(r).ToSlice()...)
			sent.Add(1)
			continue
		}
		g.Go(func() error {
			if err := p.publisher.PublishDueReminder(ctx, r); err != nil {
				slog.ErrorContext(ctx, "Failed to publish reminder",
					log.NewFields().WithOperation(log.OpRemind).WithRow(r).WithError(err).ToSlice()...)
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	slog.InfoContext(ctx, "Reminder processing complete",
		"sent", sent.Load(),
		"total_checked", len(rows))

	return int(sent.Load()), nil
}

// Reminders filters rows down to the unpaid ones that need attention.
func Reminders(rows []core.Row) []core.Row {
	var out []core.Row
	for _, r := range rows {
		if r.IsPaid {
			continue
		}
		if sev := r.Severity(); sev == core.SeverityRed || sev == core.SeverityYellow {
			out = append(out, r)
		}
	}
	return out
}
