// Package storetest holds the behavioral tests every storage.Store must pass.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"dues/internal/core"
	"dues/internal/storage"
)

// Run exercises a fresh store returned by newStore for each subtest.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.Store)
	}{
		{"add and get expense", testAddGetExpense},
		{"duplicate expense name", testDuplicateExpense},
		{"get missing expense", testGetMissing},
		{"payment for missing expense", testPaymentMissingExpense},
		{"entries without payments", testEntriesWithoutPayments},
		{"latest payment wins", testLatestPayment},
		{"latest payment tie break", testLatestPaymentTieBreak},
		{"payment history order", testListPayments},
		{"delete cascades", testDeleteCascades},
		{"delete missing expense", testDeleteMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

var (
	t0  = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	ctx = context.Background()
)

func addExpense(t *testing.T, s storage.Store, name string) core.Expense {
	t.Helper()
	e, err := s.AddExpense(ctx, core.NewExpense{
		CreatedAt:        t0,
		Name:             name,
		Periodicity:      core.Monthly,
		DueDateReference: t0,
	})
	if err != nil {
		t.Fatalf("AddExpense(%q) error = %v", name, err)
	}
	return e
}

func addPayment(t *testing.T, s storage.Store, name string, paidAt, due time.Time) core.Payment {
	t.Helper()
	p, err := s.AddPayment(ctx, core.NewPayment{
		CreatedAt:        paidAt,
		PaidAt:           paidAt,
		ExpenseName:      name,
		DueDateOfExpense: due,
	})
	if err != nil {
		t.Fatalf("AddPayment(%q) error = %v", name, err)
	}
	return p
}

func testAddGetExpense(t *testing.T, s storage.Store) {
	created := addExpense(t, s, "Rent")
	if created.ID == 0 {
		t.Error("expected non-zero expense ID")
	}

	got, err := s.GetExpense(ctx, "Rent")
	if err != nil {
		t.Fatalf("GetExpense error = %v", err)
	}
	if got.ID != created.ID || got.Name != "Rent" || got.Periodicity != core.Monthly {
		t.Errorf("GetExpense = %+v, want %+v", got, created)
	}
	if !got.DueDateReference.Equal(t0) {
		t.Errorf("DueDateReference = %s, want %s", got.DueDateReference, t0)
	}
}

func testDuplicateExpense(t *testing.T, s storage.Store) {
	addExpense(t, s, "Rent")
	_, err := s.AddExpense(ctx, core.NewExpense{CreatedAt: t0, Name: "Rent", Periodicity: core.Weekly, DueDateReference: t0})
	if !errors.Is(err, storage.ErrUniqueViolation) {
		t.Fatalf("AddExpense duplicate error = %v, want ErrUniqueViolation", err)
	}
}

func testGetMissing(t *testing.T, s storage.Store) {
	if _, err := s.GetExpense(ctx, "Nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetExpense error = %v, want ErrNotFound", err)
	}
}

func testPaymentMissingExpense(t *testing.T, s storage.Store) {
	_, err := s.AddPayment(ctx, core.NewPayment{CreatedAt: t0, PaidAt: t0, ExpenseName: "Nope", DueDateOfExpense: t0})
	if !errors.Is(err, storage.ErrReferentialViolation) {
		t.Fatalf("AddPayment error = %v, want ErrReferentialViolation", err)
	}
}

func testEntriesWithoutPayments(t *testing.T, s storage.Store) {
	addExpense(t, s, "Rent")
	addExpense(t, s, "Gym")

	entries, err := s.ListEntries(ctx)
	if err != nil {
		t.Fatalf("ListEntries error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	for _, e := range entries {
		if e.LastPayment != nil {
			t.Errorf("%s: unexpected payment %+v", e.Expense.Name, e.LastPayment)
		}
	}
}

func testLatestPayment(t *testing.T, s storage.Store) {
	addExpense(t, s, "Rent")
	addPayment(t, s, "Rent", t0.AddDate(0, 1, 0), t0.AddDate(0, 1, 0))
	latest := addPayment(t, s, "Rent", t0.AddDate(0, 2, 0), t0.AddDate(0, 2, 0))
	// Recorded later, paid earlier.
	addPayment(t, s, "Rent", t0.AddDate(0, 0, 1), t0)

	entries, err := s.ListEntries(ctx)
	if err != nil {
		t.Fatalf("ListEntries error = %v", err)
	}
	if len(entries) != 1 || entries[0].LastPayment == nil {
		t.Fatalf("entries = %+v, want one entry with a payment", entries)
	}
	if got := entries[0].LastPayment; got.ID != latest.ID || !got.PaidAt.Equal(latest.PaidAt) || !got.DueDateOfExpense.Equal(latest.DueDateOfExpense) {
		t.Errorf("LastPayment = %+v, want %+v", got, latest)
	}
}

func testLatestPaymentTieBreak(t *testing.T, s storage.Store) {
	addExpense(t, s, "Rent")
	paidAt := t0.Add(36 * time.Hour)
	addPayment(t, s, "Rent", paidAt, t0)
	second := addPayment(t, s, "Rent", paidAt, t0.AddDate(0, 1, 0))

	entries, err := s.ListEntries(ctx)
	if err != nil {
		t.Fatalf("ListEntries error = %v", err)
	}
	if got := entries[0].LastPayment; got == nil || got.ID != second.ID {
		t.Errorf("LastPayment = %+v, want ID %d", got, second.ID)
	}
}

func testListPayments(t *testing.T, s storage.Store) {
	addExpense(t, s, "Rent")
	addExpense(t, s, "Gym")
	first := addPayment(t, s, "Rent", t0.AddDate(0, 0, 1), t0)
	second := addPayment(t, s, "Rent", t0.AddDate(0, 1, 1), t0.AddDate(0, 1, 0))
	addPayment(t, s, "Gym", t0, t0)

	payments, err := s.ListPayments(ctx, "Rent")
	if err != nil {
		t.Fatalf("ListPayments error = %v", err)
	}
	if len(payments) != 2 || payments[0].ID != second.ID || payments[1].ID != first.ID {
		t.Fatalf("ListPayments = %+v, want [%d %d]", payments, second.ID, first.ID)
	}
}

func testDeleteCascades(t *testing.T, s storage.Store) {
	addExpense(t, s, "Rent")
	addExpense(t, s, "Gym")
	addPayment(t, s, "Rent", t0, t0)
	addPayment(t, s, "Rent", t0.AddDate(0, 1, 0), t0.AddDate(0, 1, 0))

	if err := s.DeleteExpense(ctx, "Rent"); err != nil {
		t.Fatalf("DeleteExpense error = %v", err)
	}

	entries, err := s.ListEntries(ctx)
	if err != nil {
		t.Fatalf("ListEntries error = %v", err)
	}
	for _, e := range entries {
		if e.Expense.Name == "Rent" {
			t.Fatal("deleted expense still listed")
		}
	}
	payments, err := s.ListPayments(ctx, "Rent")
	if err != nil {
		t.Fatalf("ListPayments error = %v", err)
	}
	if len(payments) != 0 {
		t.Fatalf("orphaned payments remain: %+v", payments)
	}

	// The name is free again and starts with a clean history.
	addExpense(t, s, "Rent")
	entries, err = s.ListEntries(ctx)
	if err != nil {
		t.Fatalf("ListEntries after re-add error = %v", err)
	}
	for _, e := range entries {
		if e.Expense.Name == "Rent" && e.LastPayment != nil {
			t.Fatalf("recreated expense inherited payment %+v", e.LastPayment)
		}
	}
}

func testDeleteMissing(t *testing.T, s storage.Store) {
	if err := s.DeleteExpense(ctx, "Nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("DeleteExpense error = %v, want ErrNotFound", err)
	}
}
