package log

import "dues/internal/core"

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldExpense     = "expense"
	FieldPeriodicity = "periodicity"
	FieldNextDue     = "next_due"
	FieldDaysLeft    = "days_left"
	FieldSeverity    = "severity"
	FieldBackend     = "backend"
	FieldSchedule    = "schedule"
	FieldCount       = "count"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentCLI       = "cli"
	ComponentBackend   = "backend"
	ComponentScheduler = "scheduler"
	ComponentNotifier  = "notifier"
)

// Operations defines standard operation names
const (
	OpAdd    = "add"
	OpPay    = "pay"
	OpDelete = "delete"
	OpList   = "list"
	OpShow   = "show"
	OpExport = "export"
	OpRemind = "remind"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithRow adds the reconciled state of one expense.
func (f LogFields) WithRow(r core.Row) LogFields {
	f[FieldExpense] = r.Expense.Name
	f[FieldPeriodicity] = r.Expense.Periodicity.String()
	f[FieldNextDue] = r.NextDue
	f[FieldDaysLeft] = r.DaysLeft
	f[FieldSeverity] = r.Severity().String()
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
