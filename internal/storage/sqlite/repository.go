// Package sqlite stores expenses in a single SQLite file through the pure-Go
// modernc.org/sqlite driver. The schema is managed by embedded migrations.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"dues/internal/core"
	"dues/internal/storage"
)

// timeLayout is fixed-width so that text comparison orders instants.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

type SQLiteRepository struct {
	db *sql.DB
}

var _ storage.Store = (*SQLiteRepository)(nil)

// dsn enables foreign keys on every pooled connection; cascade deletes and
// payment references depend on it.
func dsn(dbPath string) string {
	return dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	ctx := context.Background()
	if err := stashLegacyTables(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("stash legacy tables: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if err := importLegacyTables(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("import legacy tables: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) AddExpense(ctx context.Context, e core.NewExpense) (core.Expense, error) {
	expense := core.Expense{
		CreatedAt:        core.Instant(e.CreatedAt),
		Name:             e.Name,
		Periodicity:      e.Periodicity,
		DueDateReference: core.Instant(e.DueDateReference),
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expense (created_at, name, periodicity, due_date_reference) VALUES (?, ?, ?, ?)`,
		formatTime(expense.CreatedAt), expense.Name, expense.Periodicity, formatTime(expense.DueDateReference))
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense %q: %w", e.Name, classify(err))
	}
	if expense.ID, err = res.LastInsertId(); err != nil {
		return core.Expense{}, fmt.Errorf("read expense id: %w", err)
	}

	slog.DebugContext(ctx, "Expense saved to SQLite",
		"id", expense.ID,
		"name", expense.Name,
		"periodicity", expense.Periodicity)

	return expense, nil
}

func (r *SQLiteRepository) AddPayment(ctx context.Context, p core.NewPayment) (core.Payment, error) {
	payment := core.Payment{
		CreatedAt:        core.Instant(p.CreatedAt),
		PaidAt:           core.Instant(p.PaidAt),
		ExpenseName:      p.ExpenseName,
		DueDateOfExpense: core.Instant(p.DueDateOfExpense),
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO payment (created_at, paid_at, expense_name, due_date_of_expense) VALUES (?, ?, ?, ?)`,
		formatTime(payment.CreatedAt), formatTime(payment.PaidAt), payment.ExpenseName, formatTime(payment.DueDateOfExpense))
	if err != nil {
		return core.Payment{}, fmt.Errorf("insert payment for %q: %w", p.ExpenseName, classify(err))
	}
	if payment.ID, err = res.LastInsertId(); err != nil {
		return core.Payment{}, fmt.Errorf("read payment id: %w", err)
	}

	slog.DebugContext(ctx, "Payment saved to SQLite",
		"id", payment.ID,
		"expense", payment.ExpenseName,
		"due_date", payment.DueDateOfExpense)

	return payment, nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, name string) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, created_at, name, periodicity, due_date_reference FROM expense WHERE name = ?`, name)

	var (
		e                  core.Expense
		createdAt, refDate string
	)
	err := row.Scan(&e.ID, &createdAt, &e.Name, &e.Periodicity, &refDate)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("expense %q: %w", name, storage.ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %q: %w", name, err)
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.Expense{}, err
	}
	if e.DueDateReference, err = parseTime(refDate); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

const listEntriesQuery = `
SELECT
  e.id, e.created_at, e.name, e.periodicity, e.due_date_reference,
  p.id, p.created_at, p.paid_at, p.expense_name, p.due_date_of_expense
FROM expense e
LEFT JOIN payment p ON p.id = (
  SELECT p2.id
  FROM payment p2
  WHERE p2.expense_name = e.name
  ORDER BY p2.paid_at DESC, p2.id DESC
  LIMIT 1
)
ORDER BY e.name`

func (r *SQLiteRepository) ListEntries(ctx context.Context) ([]core.Entry, error) {
	rows, err := r.db.QueryContext(ctx, listEntriesQuery)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []core.Entry
	for rows.Next() {
		var (
			e                                         core.Expense
			createdAt, refDate                        string
			payID                                     sql.NullInt64
			payCreated, payPaid, payName, payDueOfExp sql.NullString
		)
		if err := rows.Scan(&e.ID, &createdAt, &e.Name, &e.Periodicity, &refDate,
			&payID, &payCreated, &payPaid, &payName, &payDueOfExp); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if e.DueDateReference, err = parseTime(refDate); err != nil {
			return nil, err
		}

		entry := core.Entry{Expense: e}
		if payID.Valid {
			p := core.Payment{ID: payID.Int64, ExpenseName: payName.String}
			if p.CreatedAt, err = parseTime(payCreated.String); err != nil {
				return nil, err
			}
			if p.PaidAt, err = parseTime(payPaid.String); err != nil {
				return nil, err
			}
			if p.DueDateOfExpense, err = parseTime(payDueOfExp.String); err != nil {
				return nil, err
			}
			entry.LastPayment = &p
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *SQLiteRepository) ListPayments(ctx context.Context, name string) ([]core.Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, created_at, paid_at, expense_name, due_date_of_expense
		 FROM payment WHERE expense_name = ?
		 ORDER BY paid_at DESC, id DESC`, name)
	if err != nil {
		return nil, fmt.Errorf("query payments for %q: %w", name, err)
	}
	defer rows.Close()

	var payments []core.Payment
	for rows.Next() {
		var (
			p                        core.Payment
			createdAt, paidAt, dueAt string
		)
		if err := rows.Scan(&p.ID, &createdAt, &paidAt, &p.ExpenseName, &dueAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		if p.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if p.PaidAt, err = parseTime(paidAt); err != nil {
			return nil, err
		}
		if p.DueDateOfExpense, err = parseTime(dueAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expense WHERE name = ?`, name)
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

	slog.DebugContext(ctx, "Expense deleted from SQLite", "name", name)
	return nil
}

// classify maps SQLite extended result codes onto storage error kinds. The
// original error stays in the chain for its message.
func classify(err error) error {
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return err
	}
	switch code := se.Code(); {
	case code == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return fmt.Errorf("%w: %w", storage.ErrReferentialViolation, err)
	case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE, code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return fmt.Errorf("%w: %w", storage.ErrUniqueViolation, err)
	case code == sqlite3.SQLITE_CONSTRAINT:
		// Connections without extended result codes only report the primary code.
		msg := se.Error()
		if strings.Contains(msg, "FOREIGN KEY") {
			return fmt.Errorf("%w: %w", storage.ErrReferentialViolation, err)
		}
		if strings.Contains(msg, "UNIQUE") {
			return fmt.Errorf("%w: %w", storage.ErrUniqueViolation, err)
		}
		return err
	default:
		return err
	}
}

func formatTime(t time.Time) string {
	return core.Instant(t).Format(timeLayout)
}

// legacyTimeLayout is how the earlier expenses tool wrote timestamps.
const legacyTimeLayout = "2006-01-02 15:04:05.999999999-07:00"

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		var lerr error
		if t, lerr = time.Parse(legacyTimeLayout, s); lerr != nil {
			return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
		}
	}
	return t.UTC(), nil
}
