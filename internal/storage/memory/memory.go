// Package memory is a process-local storage.Store used for tests and for
// trying the CLI without a database file.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"dues/internal/core"
	"dues/internal/storage"
)

type Store struct {
	mu       sync.Mutex
	nextID   int64
	expenses map[string]core.Expense
	payments []core.Payment
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{expenses: map[string]core.Expense{}}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) AddExpense(_ context.Context, e core.NewExpense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.expenses[e.Name]; ok {
		return core.Expense{}, fmt.Errorf("insert expense %q: %w", e.Name, storage.ErrUniqueViolation)
	}
	expense := core.Expense{
		ID:               s.id(),
		CreatedAt:        core.Instant(e.CreatedAt),
		Name:             e.Name,
		Periodicity:      e.Periodicity,
		DueDateReference: core.Instant(e.DueDateReference),
	}
	s.expenses[e.Name] = expense
	return expense, nil
}

func (s *Store) AddPayment(_ context.Context, p core.NewPayment) (core.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.expenses[p.ExpenseName]; !ok {
		return core.Payment{}, fmt.Errorf("insert payment for %q: %w", p.ExpenseName, storage.ErrReferentialViolation)
	}
	payment := core.Payment{
		ID:               s.id(),
		CreatedAt:        core.Instant(p.CreatedAt),
		PaidAt:           core.Instant(p.PaidAt),
		ExpenseName:      p.ExpenseName,
		DueDateOfExpense: core.Instant(p.DueDateOfExpense),
	}
	s.payments = append(s.payments, payment)
	return payment, nil
}

func (s *Store) GetExpense(_ context.Context, name string) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.expenses[name]
	if !ok {
		return core.Expense{}, fmt.Errorf("expense %q: %w", name, storage.ErrNotFound)
	}
	return e, nil
}

func (s *Store) ListEntries(_ context.Context) ([]core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	latest := map[string]core.Payment{}
	for _, p := range s.payments {
		cur, ok := latest[p.ExpenseName]
		if !ok || newer(p, cur) {
			latest[p.ExpenseName] = p
		}
	}

	entries := make([]core.Entry, 0, len(s.expenses))
	for name, e := range s.expenses {
		entry := core.Entry{Expense: e}
		if p, ok := latest[name]; ok {
			entry.LastPayment = &p
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return strings.Compare(entries[i].Expense.Name, entries[j].Expense.Name) < 0
	})
	return entries, nil
}

func (s *Store) ListPayments(_ context.Context, name string) ([]core.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.Payment
	for _, p := range s.payments {
		if p.ExpenseName == name {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i], out[j]) })
	return out, nil
}

func (s *Store) DeleteExpense(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.expenses[name]; !ok {
		return fmt.Errorf("expense %q: %w", name, storage.ErrNotFound)
	}
	delete(s.expenses, name)

	kept := s.payments[:0]
	for _, p := range s.payments {
		if p.ExpenseName != name {
			kept = append(kept, p)
		}
	}
	s.payments = kept
	return nil
}

func (s *Store) Close() error { return nil }

// newer orders payments the way the SQL stores do: paid_at, then id.
func newer(a, b core.Payment) bool {
	if a.PaidAt.Equal(b.PaidAt) {
		return a.ID > b.ID
	}
	return a.PaidAt.After(b.PaidAt)
}
