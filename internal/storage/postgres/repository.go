// Package postgres stores expenses in PostgreSQL through lib/pq, for setups
// where several machines share one expense list.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"dues/internal/core"
	"dues/internal/storage"
)

// SQLSTATE codes from the integrity_constraint_violation class.
const (
	codeForeignKeyViolation pq.ErrorCode = "23503"
	codeUniqueViolation     pq.ErrorCode = "23505"
)

type Repository struct {
	db *sql.DB
}

var _ storage.Store = (*Repository)(nil)

func NewRepository(ctx context.Context, databaseURL string) (*Repository, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) AddExpense(ctx context.Context, e core.NewExpense) (core.Expense, error) {
	expense := core.Expense{
		CreatedAt:        core.Instant(e.CreatedAt),
		Name:             e.Name,
		Periodicity:      e.Periodicity,
		DueDateReference: core.Instant(e.DueDateReference),
	}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO expense (created_at, name, periodicity, due_date_reference)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		expense.CreatedAt, expense.Name, expense.Periodicity, expense.DueDateReference,
	).Scan(&expense.ID)
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense %q: %w", e.Name, classify(err))
	}

	slog.DebugContext(ctx, "Expense saved to PostgreSQL",
		"id", expense.ID,
		"name", expense.Name,
		"periodicity", expense.Periodicity)

	return expense, nil
}

func (r *Repository) AddPayment(ctx context.Context, p core.NewPayment) (core.Payment, error) {
	payment := core.Payment{
		CreatedAt:        core.Instant(p.CreatedAt),
		PaidAt:           core.Instant(p.PaidAt),
		ExpenseName:      p.ExpenseName,
		DueDateOfExpense: core.Instant(p.DueDateOfExpense),
	}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO payment (created_at, paid_at, expense_name, due_date_of_expense)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		payment.CreatedAt, payment.PaidAt, payment.ExpenseName, payment.DueDateOfExpense,
	).Scan(&payment.ID)
	if err != nil {
		return core.Payment{}, fmt.Errorf("insert payment for %q: %w", p.ExpenseName, classify(err))
	}

	slog.DebugContext(ctx, "Payment saved to PostgreSQL",
		"id", payment.ID,
		"expense", payment.ExpenseName,
		"due_date", payment.DueDateOfExpense)

	return payment, nil
}

func (r *Repository) GetExpense(ctx context.Context, name string) (core.Expense, error) {
	var e core.Expense
	err := r.db.QueryRowContext(ctx,
		`SELECT id, created_at, name, periodicity, due_date_reference FROM expense WHERE name = $1`, name,
	).Scan(&e.ID, &e.CreatedAt, &e.Name, &e.Periodicity, &e.DueDateReference)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("expense %q: %w", name, storage.ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %q: %w", name, err)
	}
	normalizeExpense(&e)
	return e, nil
}

const listEntriesQuery = `
SELECT
  e.id, e.created_at, e.name, e.periodicity, e.due_date_reference,
  p.id, p.created_at, p.paid_at, p.expense_name, p.due_date_of_expense
FROM expense e
LEFT JOIN LATERAL (
  SELECT *
  FROM payment p2
  WHERE p2.expense_name = e.name
  ORDER BY p2.paid_at DESC, p2.id DESC
  LIMIT 1
) p ON true
ORDER BY e.name`

func (r *Repository) ListEntries(ctx context.Context) ([]core.Entry, error) {
	rows, err := r.db.QueryContext(ctx, listEntriesQuery)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []core.Entry
	for rows.Next() {
		var (
			e                           core.Expense
			payID                       sql.NullInt64
			payCreated, payPaid, payDue sql.NullTime
			payName                     sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.CreatedAt, &e.Name, &e.Periodicity, &e.DueDateReference,
			&payID, &payCreated, &payPaid, &payName, &payDue); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		normalizeExpense(&e)

		entry := core.Entry{Expense: e}
		if payID.Valid {
			entry.LastPayment = &core.Payment{
				ID:               payID.Int64,
				CreatedAt:        payCreated.Time.UTC(),
				PaidAt:           payPaid.Time.UTC(),
				ExpenseName:      payName.String,
				DueDateOfExpense: payDue.Time.UTC(),
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *Repository) ListPayments(ctx context.Context, name string) ([]core.Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, created_at, paid_at, expense_name, due_date_of_expense
		 FROM payment WHERE expense_name = $1
		 ORDER BY paid_at DESC, id DESC`, name)
	if err != nil {
		return nil, fmt.Errorf("query payments for %q: %w", name, err)
	}
	defer rows.Close()

	var payments []core.Payment
	for rows.Next() {
		var p core.Payment
		if err := rows.Scan(&p.ID, &p.CreatedAt, &p.PaidAt, &p.ExpenseName, &p.DueDateOfExpense); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		p.CreatedAt = p.CreatedAt.UTC()
		p.PaidAt = p.PaidAt.UTC()
		p.DueDateOfExpense = p.DueDateOfExpense.UTC()
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *Repository) DeleteExpense(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expense WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete expense %q: %w", name, classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete expense %q: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("expense %q: %w", name, storage.ErrNotFound)
	}

	slog.DebugContext(ctx, "Expense deleted from PostgreSQL", "name", name)
	return nil
}

func normalizeExpense(e *core.Expense) {
	e.CreatedAt = e.CreatedAt.UTC()
	e.DueDateReference = e.DueDateReference.UTC()
}

// classify maps SQLSTATE codes onto storage error kinds.
func classify(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case codeForeignKeyViolation:
		return fmt.Errorf("%w: %w", storage.ErrReferentialViolation, err)
	case codeUniqueViolation:
		return fmt.Errorf("%w: %w", storage.ErrUniqueViolation, err)
	default:
		return err
	}
}
