// Package services provides the expense operations used by the CLI and the
// reminder daemon. It validates input, translates storage error kinds into
// domain errors and publishes events.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"dues/internal/core"
	"dues/internal/storage"
)

// Publisher receives domain events. The AMQP client implements it; a nil
// Publisher disables publishing.
type Publisher interface {
	PublishPaymentRecorded(ctx context.Context, p core.Payment) error
	PublishExpenseDeleted(ctx context.Context, name string) error
	PublishDueReminder(ctx context.Context, r core.Row) error
	Close() error
}

// ExpenseService orchestrates expense operations across storage and AMQP
type ExpenseService struct {
	storage   storage.Store
	publisher Publisher
}

func NewExpenseService(store storage.Store, publisher Publisher) *ExpenseService {
	return &ExpenseService{
		storage:   store,
		publisher: publisher,
	}
}

// Add creates an expense anchored at reference. The day-of-month check reads
// reference in UTC, the frame every schedule is computed in.
func (s *ExpenseService) Add(ctx context.Context, name string, p core.Periodicity, reference, now time.Time) (core.Expense, error) {
	ne := core.NewExpense{
		CreatedAt:        now,
		Name:             strings.TrimSpace(name),
		Periodicity:      p,
		DueDateReference: reference,
	}
	if err := ne.Validate(); err != nil {
		return core.Expense{}, err
	}

	e, err := s.storage.AddExpense(ctx, ne)
	if errors.Is(err, storage.ErrUniqueViolation) {
		return core.Expense{}, fmt.Errorf("%w: %q", core.ErrDuplicateExpense, ne.Name)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense added",
		"name", e.Name,
		"periodicity", e.Periodicity,
		"reference", e.DueDateReference)
	return e, nil
}

// Pay records a payment at paidAt against the first occurrence not before it.
func (s *ExpenseService) Pay(ctx context.Context, name string, paidAt, now time.Time) (core.Payment, error) {
	name = strings.TrimSpace(name)
	e, err := s.storage.GetExpense(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return core.Payment{}, fmt.Errorf("%w: %q", core.ErrExpenseNotFound, name)
	}
	if err != nil {
		return core.Payment{}, fmt.Errorf("load expense: %w", err)
	}

	due, err := core.NextDue(e.DueDateReference, paidAt, e.Periodicity)
	if err != nil {
		return core.Payment{}, fmt.Errorf("compute due date for %q: %w", name, err)
	}

	np := core.NewPayment{
		CreatedAt:        now,
		PaidAt:           paidAt,
		ExpenseName:      e.Name,
		DueDateOfExpense: due,
	}
	if err := np.Validate(); err != nil {
		return core.Payment{}, err
	}

	p, err := s.storage.AddPayment(ctx, np)
	// The expense can disappear between the lookup and the insert.
	if errors.Is(err, storage.ErrReferentialViolation) {
		return core.Payment{}, fmt.Errorf("%w: %q", core.ErrExpenseNotFound, name)
	}
	if err != nil {
		return core.Payment{}, fmt.Errorf("save payment: %w", err)
	}

	slog.InfoContext(ctx, "Payment recorded",
		"expense", p.ExpenseName,
		"paid_at", p.PaidAt,
		"due_date", p.DueDateOfExpense)

	if s.publisher != nil {
		if err := s.publisher.PublishPaymentRecorded(ctx, p); err != nil {
			slog.ErrorContext(ctx, "Failed to publish payment event",
				"expense", p.ExpenseName, "error", err)
		}
	}
	return p, nil
}

// Delete removes an expense together with its payment history.
func (s *ExpenseService) Delete(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	err := s.storage.DeleteExpense(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %q", core.ErrExpenseNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense deleted", "name", name)

	if s.publisher != nil {
		if err := s.publisher.PublishExpenseDeleted(ctx, name); err != nil {
			slog.ErrorContext(ctx, "Failed to publish delete event",
				"name", name, "error", err)
		}
	}
	return nil
}

// List reconciles every expense at now.
func (s *ExpenseService) List(ctx context.Context, now time.Time) ([]core.Row, error) {
	entries, err := s.storage.ListEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	rows, err := core.ProjectAll(entries, now)
	if err != nil {
		return nil, fmt.Errorf("reconcile expenses: %w", err)
	}
	return rows, nil
}

// History returns the expense and its payments, newest first.
func (s *ExpenseService) History(ctx context.Context, name string) (core.Expense, []core.Payment, error) {
	name = strings.TrimSpace(name)
	e, err := s.storage.GetExpense(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return core.Expense{}, nil, fmt.Errorf("%w: %q", core.ErrExpenseNotFound, name)
	}
	if err != nil {
		return core.Expense{}, nil, fmt.Errorf("load expense: %w", err)
	}

	payments, err := s.storage.ListPayments(ctx, name)
	if err != nil {
		return core.Expense{}, nil, fmt.Errorf("list payments: %w", err)
	}
	return e, payments, nil
}

// Close closes both storage and AMQP connections
func (s *ExpenseService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close expense service: %w", errors.Join(errs...))
	}

	return nil
}
