// Package storage defines the contract between the expense services and the
// databases that persist expenses and payments.
//
// Each backend maps its engine-specific constraint failures onto the error
// kinds below, so callers never inspect driver error codes themselves.
package storage

import (
	"context"
	"errors"

	"dues/internal/core"
)

var (
	// ErrNotFound is returned when a lookup by name matches nothing.
	ErrNotFound = errors.New("not found")
	// ErrUniqueViolation is returned when an expense name is already taken.
	ErrUniqueViolation = errors.New("unique constraint violated")
	// ErrReferentialViolation is returned when a payment names an expense
	// that does not exist.
	ErrReferentialViolation = errors.New("referential constraint violated")
)

// Store persists expenses and their append-only payment history.
type Store interface {
	AddExpense(ctx context.Context, e core.NewExpense) (core.Expense, error)
	AddPayment(ctx context.Context, p core.NewPayment) (core.Payment, error)
	GetExpense(ctx context.Context, name string) (core.Expense, error)

	// ListEntries returns every expense with its most recent payment: the
	// greatest paid_at, ties broken by the greatest payment ID.
	ListEntries(ctx context.Context) ([]core.Entry, error)

	// ListPayments returns the payments of one expense, newest first.
	ListPayments(ctx context.Context, name string) ([]core.Payment, error)

	// DeleteExpense removes an expense and, by cascade, its payments.
	DeleteExpense(ctx context.Context, name string) error

	Close() error
}
