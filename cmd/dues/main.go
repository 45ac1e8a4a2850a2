package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/alecthomas/kingpin"

	"dues/internal/cli"
	"dues/internal/config"
	"dues/internal/core"
	"dues/internal/log"
	"dues/internal/render"
	"dues/internal/services"
)

func main() {
	cli.LoadEnvFile()
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr, time.Now))
}

// command is one parsed invocation.
type command struct {
	svc *services.ExpenseService
	loc *time.Location
	out io.Writer
	now time.Time
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, clock func() time.Time) int {
	app := kingpin.New("dues", "Track recurring expenses and when they are due.")
	app.ErrorWriter(stderr)
	app.UsageWriter(stderr)

	cmdList := app.Command("list", "Show every expense with its next due date").Default()

	cmdAdd := app.Command("add", "Add a recurring expense")
	addName := cmdAdd.Flag("name", "Expense name").Required().String()
	addPeriod := cmdAdd.Flag("period", "Weekly, Monthly, Bimonthly, Trimonthly, Quarterly or Biannual").Required().String()
	addDate := cmdAdd.Flag("date", "First due date, YYYY-MM-DD (UTC) or RFC 3339").Required().String()

	cmdPay := app.Command("pay", "Record a payment for the next due date")
	payName := cmdPay.Flag("name", "Expense name").Required().String()
	payDate := cmdPay.Flag("date", "Payment date, defaults to now").String()

	cmdDelete := app.Command("delete", "Delete an expense and its payments")
	deleteName := cmdDelete.Flag("name", "Expense name").Required().String()

	cmdShow := app.Command("show", "Show the payment history of an expense")
	showName := cmdShow.Flag("name", "Expense name").Required().String()

	cmdExport := app.Command("export", "Export the reconciled expenses")
	exportFormat := cmdExport.Flag("format", "Output format").Default("xlsx").Enum("xlsx", "ics")
	exportOutput := cmdExport.Flag("output", "Output file, - for stdout").Required().String()

	selected, err := app.Parse(args)
	if err != nil {
		fmt.Fprintf(stderr, "dues: %v\n", err)
		return 1
	}

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		fmt.Fprintf(stderr, "dues: %v\n", err)
		return 1
	}
	quietByDefault(cfg)
	logger := cli.SetupLogger(cfg, log.ComponentCLI)
	loc, _ := cfg.Location()

	res, err := cli.OpenBackend(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "dues: %v\n", err)
		return 1
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Warn("Cleanup failed", log.FieldError, err)
		}
	}()

	c := &command{svc: res.Service, loc: loc, out: stdout, now: clock().In(loc)}

	var op string
	switch selected {
	case cmdList.FullCommand():
		op, err = log.OpList, c.list(ctx)
	case cmdAdd.FullCommand():
		op, err = log.OpAdd, c.add(ctx, *addName, *addPeriod, *addDate)
	case cmdPay.FullCommand():
		op, err = log.OpPay, c.pay(ctx, *payName, *payDate)
	case cmdDelete.FullCommand():
		op, err = log.OpDelete, c.delete(ctx, *deleteName)
	case cmdShow.FullCommand():
		op, err = log.OpShow, c.show(ctx, *showName)
	case cmdExport.FullCommand():
		op, err = log.OpExport, c.export(ctx, *exportFormat, *exportOutput)
	}
	if err != nil {
		logger.Debug("Command failed", log.NewFields().WithOperation(op).WithError(err).ToSlice()...)
		fmt.Fprintf(stderr, "dues: %v\n", err)
		return 1
	}
	return 0
}

// quietByDefault keeps service chatter off the terminal unless LOG_LEVEL asks for it.
func quietByDefault(cfg *config.Config) {
	if os.Getenv("LOG_LEVEL") == "" {
		cfg.LogLevel = "warn"
	}
}

func (c *command) list(ctx context.Context) error {
	rows, err := c.svc.List(ctx, c.now)
	if err != nil {
		return err
	}
	return render.Table(c.out, rows, c.loc)
}

func (c *command) add(ctx context.Context, name, period, date string) error {
	p, err := core.ParsePeriodicityInput(period)
	if err != nil {
		return err
	}
	ref, err := cli.ParseDate(date)
	if err != nil {
		return err
	}
	e, err := c.svc.Add(ctx, name, p, ref, c.now)
	if err != nil {
		return err
	}
	next, err := core.NextDue(e.DueDateReference, c.now, e.Periodicity)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.out, "Added %s (%s), next due %s\n", e.Name, e.Periodicity, render.DueDate(next))
	return err
}

func (c *command) pay(ctx context.Context, name, date string) error {
	paidAt := c.now
	if date != "" {
		var err error
		if paidAt, err = cli.ParseDate(date); err != nil {
			return err
		}
	}
	p, err := c.svc.Pay(ctx, name, paidAt, c.now)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.out, "Paid %s for %s\n", name, render.DueDate(p.DueDateOfExpense))
	return err
}

func (c *command) delete(ctx context.Context, name string) error {
	if err := c.svc.Delete(ctx, name); err != nil {
		return err
	}
	_, err := fmt.Fprintf(c.out, "Deleted %s\n", name)
	return err
}

func (c *command) show(ctx context.Context, name string) error {
	e, payments, err := c.svc.History(ctx, name)
	if err != nil {
		return err
	}
	return render.History(c.out, e, payments, c.loc)
}

var errNothingToExport = errors.New("nothing to export")

func (c *command) export(ctx context.Context, format, output string) error {
	rows, err := c.svc.List(ctx, c.now)
	if err != nil {
		return err
	}

	var data []byte
	switch format {
	case "xlsx":
		if data, err = render.Workbook(rows, c.loc); err != nil {
			return err
		}
	case "ics":
		if len(rows) == 0 {
			return errNothingToExport
		}
		var buf bytes.Buffer
		if err := render.WriteCalendar(&buf, render.Calendar(rows, c.now)); err != nil {
			return err
		}
		data = buf.Bytes()
	default:
		return fmt.Errorf("unknown export format %q", format)
	}

	if output == "-" {
		_, err = c.out.Write(data)
		return err
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	_, err = fmt.Fprintf(c.out, "Exported %d expenses to %s\n", len(rows), output)
	return err
}
