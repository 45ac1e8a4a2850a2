package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"dues/internal/core"
)

// Table layouts written by the earlier expenses tool.
const (
	oldestSchema = `
CREATE TABLE expense (
    id                 INTEGER PRIMARY KEY,
    created_at         TEXT NOT NULL,
    name               TEXT NOT NULL,
    periodicity        TEXT NOT NULL,
    due_date_reference TEXT NOT NULL
);
CREATE TABLE payment (
    id           INTEGER PRIMARY KEY,
    created_at   TEXT NOT NULL,
    paid_at      TEXT NOT NULL,
    expense_name TEXT NOT NULL
);`

	dueDateSchema = `
CREATE TABLE expense (
    id                 INTEGER PRIMARY KEY,
    created_at         TEXT NOT NULL,
    name               TEXT UNIQUE NOT NULL,
    periodicity        TEXT NOT NULL,
    due_date_reference TEXT NOT NULL
);
CREATE TABLE payment (
    id                  INTEGER PRIMARY KEY,
    created_at          TEXT NOT NULL,
    paid_at             TEXT NOT NULL,
    expense_name        TEXT NOT NULL,
    due_date_of_expense TEXT NOT NULL,
    FOREIGN KEY (expense_name) REFERENCES expense(name) ON DELETE CASCADE ON UPDATE CASCADE
);`
)

func writeLegacyDB(t *testing.T, stmts ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.sqlite")
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		t.Fatalf("open legacy database: %v", err)
	}
	defer db.Close()
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
	return path
}

func openRepo(t *testing.T, path string) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("NewSQLiteRepository error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func entriesByName(t *testing.T, repo *SQLiteRepository) map[string]core.Entry {
	t.Helper()
	entries, err := repo.ListEntries(context.Background())
	if err != nil {
		t.Fatalf("ListEntries error = %v", err)
	}
	byName := make(map[string]core.Entry, len(entries))
	for _, e := range entries {
		byName[e.Expense.Name] = e
	}
	return byName
}

func TestNewSQLiteRepository_ImportsOldestLayout(t *testing.T) {
	path := writeLegacyDB(t, oldestSchema,
		`INSERT INTO expense VALUES (1, '2024-01-01 09:00:00.123456789+00:00', 'Rent', 'Monthly', '2024-01-15 00:00:00+00:00')`,
		`INSERT INTO expense VALUES (2, '2024-01-01 09:05:00+00:00', 'Gym', 'Biweekly', '2024-01-06 00:00:00+00:00')`,
		`INSERT INTO expense VALUES (3, '2024-01-02 09:00:00+00:00', 'Rent', 'Weekly', '2024-01-03 00:00:00+00:00')`,
		`INSERT INTO payment VALUES (1, '2024-02-10 08:30:00.123456789+00:00', '2024-02-10 08:30:00.123456789+00:00', 'Rent')`,
		`INSERT INTO payment VALUES (2, '2024-02-11 08:30:00+00:00', '2024-02-11 08:30:00+00:00', 'Ghost')`,
	)
	repo := openRepo(t, path)
	byName := entriesByName(t, repo)

	if len(byName) != 2 {
		t.Fatalf("imported %d expenses, want 2: %+v", len(byName), byName)
	}

	rent := byName["Rent"]
	if rent.Expense.ID != 1 || rent.Expense.Periodicity != core.Monthly {
		t.Errorf("Rent = %+v, want the first row kept", rent.Expense)
	}
	if want := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC); !rent.Expense.DueDateReference.Equal(want) {
		t.Errorf("Rent reference = %v, want %v", rent.Expense.DueDateReference, want)
	}
	if rent.LastPayment == nil {
		t.Fatal("Rent lost its payment")
	}
	if want := time.Date(2024, 2, 10, 8, 30, 0, 123456000, time.UTC); !rent.LastPayment.PaidAt.Equal(want) {
		t.Errorf("PaidAt = %v, want %v", rent.LastPayment.PaidAt, want)
	}
	if want := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC); !rent.LastPayment.DueDateOfExpense.Equal(want) {
		t.Errorf("backfilled due date = %v, want %v", rent.LastPayment.DueDateOfExpense, want)
	}

	gym := byName["Gym"]
	if gym.Expense.Periodicity != core.Biweekly || gym.LastPayment != nil {
		t.Errorf("Gym = %+v", gym)
	}

	payments, err := repo.ListPayments(context.Background(), "Ghost")
	if err != nil {
		t.Fatalf("ListPayments error = %v", err)
	}
	if len(payments) != 0 {
		t.Errorf("orphan payment imported: %+v", payments)
	}
}

func TestNewSQLiteRepository_ImportsDueDateLayout(t *testing.T) {
	ctx := context.Background()
	path := writeLegacyDB(t, dueDateSchema,
		`INSERT INTO expense VALUES (7, '2024-01-01 09:00:00+00:00', 'Rent', 'Monthly', '2024-01-15 00:00:00+00:00')`,
		`INSERT INTO payment VALUES (4, '2024-03-20 10:00:00+00:00', '2024-03-20 10:00:00+00:00', 'Rent', '2024-03-15 00:00:00+00:00')`,
	)

	repo := openRepo(t, path)
	rent, ok := entriesByName(t, repo)["Rent"]
	if !ok || rent.LastPayment == nil {
		t.Fatalf("Rent = %+v, want it imported with its payment", rent)
	}
	if rent.LastPayment.ID != 4 {
		t.Errorf("payment ID = %d, want 4", rent.LastPayment.ID)
	}
	if want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC); !rent.LastPayment.DueDateOfExpense.Equal(want) {
		t.Errorf("due date = %v, want the stored %v", rent.LastPayment.DueDateOfExpense, want)
	}

	// New rows continue after the imported IDs and the cascade is in place.
	e, err := repo.AddExpense(ctx, core.NewExpense{
		CreatedAt: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), Name: "Gym",
		Periodicity: core.Weekly, DueDateReference: time.Date(2024, 4, 6, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("AddExpense error = %v", err)
	}
	if e.ID <= 7 {
		t.Errorf("new expense ID = %d, want it after the imported ones", e.ID)
	}
	if err := repo.DeleteExpense(ctx, "Rent"); err != nil {
		t.Fatalf("DeleteExpense error = %v", err)
	}
	payments, err := repo.ListPayments(ctx, "Rent")
	if err != nil {
		t.Fatalf("ListPayments error = %v", err)
	}
	if len(payments) != 0 {
		t.Errorf("payments survived delete: %+v", payments)
	}
}

func TestNewSQLiteRepository_ImportRunsOnce(t *testing.T) {
	path := writeLegacyDB(t, oldestSchema,
		`INSERT INTO expense VALUES (1, '2024-01-01 09:00:00+00:00', 'Rent', 'Monthly', '2024-01-15 00:00:00+00:00')`,
		`INSERT INTO payment VALUES (1, '2024-02-10 08:30:00+00:00', '2024-02-10 08:30:00+00:00', 'Rent')`,
	)

	first, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("first open error = %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close error = %v", err)
	}

	repo := openRepo(t, path)
	rent, ok := entriesByName(t, repo)["Rent"]
	if !ok || rent.LastPayment == nil || rent.LastPayment.ID != 1 {
		t.Fatalf("Rent after reopen = %+v", rent)
	}
	for _, table := range []string{legacyExpenseTable, legacyPaymentTable} {
		exists, err := tableExists(context.Background(), repo.db, table)
		if err != nil {
			t.Fatalf("tableExists error = %v", err)
		}
		if exists {
			t.Errorf("stashed table %s left behind", table)
		}
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Time
		wantErr bool
	}{
		{"store layout", "2024-02-10T08:30:00.123456Z", time.Date(2024, 2, 10, 8, 30, 0, 123456000, time.UTC), false},
		{"offset", "2024-02-10T10:30:00+02:00", time.Date(2024, 2, 10, 8, 30, 0, 0, time.UTC), false},
		{"earlier tool", "2024-02-10 08:30:00.123456789+00:00", time.Date(2024, 2, 10, 8, 30, 0, 123456789, time.UTC), false},
		{"earlier tool whole seconds", "2024-02-10 08:30:00+00:00", time.Date(2024, 2, 10, 8, 30, 0, 0, time.UTC), false},
		{"garbage", "10/02/2024", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTime(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseTime(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && (!got.Equal(tt.want) || got.Location() != time.UTC) {
				t.Errorf("parseTime(%q) = %v, want %v in UTC", tt.in, got, tt.want)
			}
		})
	}
}
