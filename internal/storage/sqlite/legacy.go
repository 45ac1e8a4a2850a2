package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"dues/internal/core"
)

// Databases written by the earlier expenses tool share the default path but
// carry no migration history. Their payment table may lack
// due_date_of_expense, their expense names may not be unique, and their
// timestamps look like "2024-01-01 10:00:00.123456789+00:00".

const (
	legacyExpenseTable = "legacy_expense"
	legacyPaymentTable = "legacy_payment"
)

// stashLegacyTables renames the tables of an unmigrated database out of the
// way so the migrations can create the current schema.
func stashLegacyTables(ctx context.Context, db *sql.DB) error {
	hasExpense, err := tableExists(ctx, db, "expense")
	if err != nil || !hasExpense {
		return err
	}
	migrated, err := tableExists(ctx, db, "schema_migrations")
	if err != nil || migrated {
		return err
	}
	hasPayment, err := tableExists(ctx, db, "payment")
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin stash: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `ALTER TABLE expense RENAME TO `+legacyExpenseTable); err != nil {
		return fmt.Errorf("stash expense table: %w", err)
	}
	if hasPayment {
		if _, err := tx.ExecContext(ctx, `ALTER TABLE payment RENAME TO `+legacyPaymentTable); err != nil {
			return fmt.Errorf("stash payment table: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit stash: %w", err)
	}

	slog.InfoContext(ctx, "Found database without migration history, importing it")
	return nil
}

// importLegacyTables copies stashed rows into the current schema and drops
// the stash. Timestamps are rewritten in the store's layout and payments
// without a settled due date get the occurrence their payment instant
// settles. Everything happens in one transaction, so a failed import is
// retried on the next open.
func importLegacyTables(ctx context.Context, db *sql.DB) error {
	stashed, err := tableExists(ctx, db, legacyExpenseTable)
	if err != nil || !stashed {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	expenses, err := importLegacyExpenses(ctx, tx)
	if err != nil {
		return err
	}

	payments := 0
	hasPayments, err := tableExists(ctx, tx, legacyPaymentTable)
	if err != nil {
		return err
	}
	if hasPayments {
		if payments, err = importLegacyPayments(ctx, tx, expenses); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DROP TABLE `+legacyPaymentTable); err != nil {
			return fmt.Errorf("drop stashed payments: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DROP TABLE `+legacyExpenseTable); err != nil {
		return fmt.Errorf("drop stashed expenses: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}

	slog.InfoContext(ctx, "Imported existing expenses",
		"expenses", len(expenses),
		"payments", payments)
	return nil
}

func importLegacyExpenses(ctx context.Context, tx *sql.Tx) (map[string]core.Expense, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, created_at, name, periodicity, due_date_reference FROM `+legacyExpenseTable+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("read stashed expenses: %w", err)
	}

	var all []core.Expense
	for rows.Next() {
		var (
			e                         core.Expense
			createdAt, period, refDay string
		)
		if err := rows.Scan(&e.ID, &createdAt, &e.Name, &period, &refDay); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan stashed expense: %w", err)
		}
		if e.Periodicity, err = core.ParsePeriodicity(period); err != nil {
			rows.Close()
			return nil, fmt.Errorf("stashed expense %q: %w", e.Name, err)
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			rows.Close()
			return nil, err
		}
		if e.DueDateReference, err = parseTime(refDay); err != nil {
			rows.Close()
			return nil, err
		}
		all = append(all, e)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	byName := make(map[string]core.Expense, len(all))
	for _, e := range all {
		// The oldest layout had no unique name; the first row wins.
		if _, dup := byName[e.Name]; dup {
			slog.WarnContext(ctx, "Skipping duplicate expense", "id", e.ID, "name", e.Name)
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO expense (id, created_at, name, periodicity, due_date_reference) VALUES (?, ?, ?, ?, ?)`,
			e.ID, formatTime(e.CreatedAt), e.Name, e.Periodicity, formatTime(e.DueDateReference)); err != nil {
			return nil, fmt.Errorf("import expense %q: %w", e.Name, classify(err))
		}
		byName[e.Name] = e
	}
	return byName, nil
}

func importLegacyPayments(ctx context.Context, tx *sql.Tx, expenses map[string]core.Expense) (int, error) {
	hasDue, err := columnExists(ctx, tx, legacyPaymentTable, "due_date_of_expense")
	if err != nil {
		return 0, err
	}
	dueColumn := "''"
	if hasDue {
		dueColumn = "due_date_of_expense"
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, created_at, paid_at, expense_name, `+dueColumn+` FROM `+legacyPaymentTable+` ORDER BY id`)
	if err != nil {
		return 0, fmt.Errorf("read stashed payments: %w", err)
	}

	type stashed struct {
		p   core.Payment
		due string
	}
	var all []stashed
	for rows.Next() {
		var (
			s                 stashed
			createdAt, paidAt string
		)
		if err := rows.Scan(&s.p.ID, &createdAt, &paidAt, &s.p.ExpenseName, &s.due); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan stashed payment: %w", err)
		}
		if s.p.CreatedAt, err = parseTime(createdAt); err != nil {
			rows.Close()
			return 0, err
		}
		if s.p.PaidAt, err = parseTime(paidAt); err != nil {
			rows.Close()
			return 0, err
		}
		all = append(all, s)
	}
	if err := rows.Close(); err != nil {
		return 0, err
	}

	imported := 0
	for _, s := range all {
		e, ok := expenses[s.p.ExpenseName]
		if !ok {
			slog.WarnContext(ctx, "Skipping payment for unknown expense", "id", s.p.ID, "expense", s.p.ExpenseName)
			continue
		}

		p := s.p
		if s.due != "" {
			if p.DueDateOfExpense, err = parseTime(s.due); err != nil {
				return 0, err
			}
		} else if p.DueDateOfExpense, err = core.NextDue(e.DueDateReference, p.PaidAt, e.Periodicity); err != nil {
			return 0, fmt.Errorf("settle stashed payment %d: %w", p.ID, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO payment (id, created_at, paid_at, expense_name, due_date_of_expense) VALUES (?, ?, ?, ?, ?)`,
			p.ID, formatTime(p.CreatedAt), formatTime(p.PaidAt), p.ExpenseName, formatTime(p.DueDateOfExpense)); err != nil {
			return 0, fmt.Errorf("import payment %d: %w", p.ID, classify(err))
		}
		imported++
	}
	return imported, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func tableExists(ctx context.Context, q querier, name string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("look up table %s: %w", name, err)
	}
	return n > 0, nil
}

func columnExists(ctx context.Context, q querier, table, column string) (bool, error) {
	rows, err := q.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return false, fmt.Errorf("inspect table %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
