package core

import (
	"testing"
	"time"
)

func rentExpense() Expense {
	return Expense{
		ID:               1,
		Name:             "Rent",
		Periodicity:      Monthly,
		DueDateReference: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestProject(t *testing.T) {
	now := time.Date(2024, 2, 10, 12, 0, 0, 0, time.UTC)
	current := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)
	previous := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		payment  *Payment
		wantPaid bool
	}{
		{
			name:     "never paid",
			payment:  nil,
			wantPaid: false,
		},
		{
			name: "paid current occurrence",
			payment: &Payment{
				ID:               3,
				PaidAt:           time.Date(2024, 2, 9, 0, 0, 0, 0, time.UTC),
				ExpenseName:      "Rent",
				DueDateOfExpense: current,
			},
			wantPaid: true,
		},
		{
			name: "latest payment settled an earlier occurrence",
			payment: &Payment{
				ID:               2,
				PaidAt:           time.Date(2024, 2, 9, 0, 0, 0, 0, time.UTC),
				ExpenseName:      "Rent",
				DueDateOfExpense: previous,
			},
			wantPaid: false,
		},
		{
			name: "same instant in another zone still matches",
			payment: &Payment{
				ID:               4,
				PaidAt:           time.Date(2024, 2, 9, 0, 0, 0, 0, time.UTC),
				ExpenseName:      "Rent",
				DueDateOfExpense: current.In(time.FixedZone("UTC-5", -5*60*60)),
			},
			wantPaid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, err := Project(Entry{Expense: rentExpense(), LastPayment: tt.payment}, now)
			if err != nil {
				t.Fatalf("Project() error = %v", err)
			}
			if !row.NextDue.Equal(current) {
				t.Errorf("NextDue = %s, want %s", row.NextDue, current)
			}
			if row.DaysLeft != 4 {
				t.Errorf("DaysLeft = %d, want 4", row.DaysLeft)
			}
			if row.IsPaid != tt.wantPaid {
				t.Errorf("IsPaid = %v, want %v", row.IsPaid, tt.wantPaid)
			}
		})
	}
}

func TestProject_RollsPastPaidOccurrence(t *testing.T) {
	// Paid for Feb 15, but by Feb 16 the current occurrence is Mar 15.
	now := time.Date(2024, 2, 16, 0, 0, 0, 0, time.UTC)
	payment := &Payment{
		PaidAt:           time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC),
		ExpenseName:      "Rent",
		DueDateOfExpense: time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC),
	}

	row, err := Project(Entry{Expense: rentExpense(), LastPayment: payment}, now)
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	if row.IsPaid {
		t.Error("IsPaid = true, want false")
	}
	if want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC); !row.NextDue.Equal(want) {
		t.Errorf("NextDue = %s, want %s", row.NextDue, want)
	}
	if row.DaysLeft != 28 {
		t.Errorf("DaysLeft = %d, want 28", row.DaysLeft)
	}
}

func TestRow_LastPaymentDisplay(t *testing.T) {
	row := Row{}
	if got := row.LastPaymentDisplay(time.UTC); got != NotPaid {
		t.Errorf("LastPaymentDisplay() = %q, want %q", got, NotPaid)
	}

	row.LastPayment = &Payment{PaidAt: time.Date(2024, 2, 9, 10, 30, 0, 0, time.UTC)}
	if got, want := row.LastPaymentDisplay(time.UTC), "Fri, 09 Feb 2024 10:30:00 +0000"; got != want {
		t.Errorf("LastPaymentDisplay() = %q, want %q", got, want)
	}
}

func TestProjectAll_OrdersByNextDue(t *testing.T) {
	now := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	entries := []Entry{
		{Expense: Expense{Name: "Rent", Periodicity: Monthly, DueDateReference: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)}},
		{Expense: Expense{Name: "Gym", Periodicity: Weekly, DueDateReference: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}},
		{Expense: Expense{Name: "Bins", Periodicity: Weekly, DueDateReference: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}},
		{Expense: Expense{Name: "Insurance", Periodicity: Biannual, DueDateReference: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)}},
	}

	rows, err := ProjectAll(entries, now)
	if err != nil {
		t.Fatalf("ProjectAll() error = %v", err)
	}
	var names []string
	for _, r := range rows {
		names = append(names, r.Expense.Name)
	}
	want := []string{"Bins", "Gym", "Rent", "Insurance"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("order = %v, want %v", names, want)
		}
	}
}

func TestBand(t *testing.T) {
	tests := []struct {
		p    Periodicity
		days int
		want Severity
	}{
		{Weekly, -3, SeverityRed},
		{Weekly, 0, SeverityRed},
		{Weekly, 1, SeverityRed},
		{Weekly, 2, SeverityYellow},
		{Weekly, 3, SeverityYellow},
		{Weekly, 4, SeverityNormal},
		{Monthly, 4, SeverityRed},
		{Monthly, 5, SeverityYellow},
		{Monthly, 10, SeverityYellow},
		{Monthly, 11, SeverityNormal},
		{Bimonthly, 9, SeverityRed},
		{Bimonthly, 21, SeverityYellow},
		{Quarterly, 20, SeverityYellow},
		{Biannual, 65, SeverityYellow},
		{Biannual, 66, SeverityNormal},
		{Periodicity("Daily"), 3, SeverityRed},
	}
	for _, tt := range tests {
		if got := Band(tt.p, tt.days); got != tt.want {
			t.Errorf("Band(%s, %d) = %s, want %s", tt.p, tt.days, got, tt.want)
		}
	}
}

func TestRow_SeverityPaidIsNormal(t *testing.T) {
	row := Row{Expense: Expense{Periodicity: Weekly}, DaysLeft: 0, IsPaid: true}
	if got := row.Severity(); got != SeverityNormal {
		t.Errorf("Severity() = %s, want normal", got)
	}
	row.IsPaid = false
	if got := row.Severity(); got != SeverityRed {
		t.Errorf("Severity() = %s, want red", got)
	}
}

func TestProject_SameInstantAnyLocation(t *testing.T) {
	e := Expense{
		Name:             "Phone",
		Periodicity:      Monthly,
		DueDateReference: time.Date(2012, 5, 12, 0, 0, 1, 0, time.UTC),
	}
	now := time.Date(2029, 1, 10, 0, 0, 1, 0, time.UTC)
	want := time.Date(2029, 1, 12, 0, 0, 1, 0, time.UTC)

	base, err := Project(Entry{Expense: e}, now)
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	if !base.NextDue.Equal(want) {
		t.Fatalf("NextDue = %s, want %s", base.NextDue, want)
	}
	paid := &Payment{ExpenseName: "Phone", PaidAt: now, DueDateOfExpense: base.NextDue}

	locs := []*time.Location{time.FixedZone("UTC-5", -5*60*60), time.FixedZone("UTC+9", 9*60*60)}
	if ny, err := time.LoadLocation("America/New_York"); err == nil {
		locs = append(locs, ny)
	}
	for _, loc := range locs {
		t.Run(loc.String(), func(t *testing.T) {
			row, err := Project(Entry{Expense: e, LastPayment: paid}, now.In(loc))
			if err != nil {
				t.Fatalf("Project() error = %v", err)
			}
			if !row.NextDue.Equal(want) || !row.IsPaid {
				t.Errorf("row = NextDue %s IsPaid %v, want %s paid", row.NextDue, row.IsPaid, want)
			}
			if row.DaysLeft != base.DaysLeft {
				t.Errorf("DaysLeft = %d, want %d", row.DaysLeft, base.DaysLeft)
			}
		})
	}
}
