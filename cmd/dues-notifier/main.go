package main

import (
	"context"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/alecthomas/kingpin"
	"golang.org/x/sync/errgroup"

	"dues/internal/cli"
	"dues/internal/log"
	"dues/internal/scheduler"
	"dues/internal/services"
)

const shutdownTimeout = 10 * time.Second

func main() {
	once := kingpin.Flag("once", "Send reminders once and exit").Bool()
	kingpin.Parse()

	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "dues-notifier: %v\n", err)
		os.Exit(1)
	}

	logger := cli.SetupLogger(cfg, log.ComponentNotifier)
	loc, _ := cfg.Location()

	logger.Info("Starting reminder daemon",
		log.FieldBackend, cfg.DataBackend,
		log.FieldSchedule, cfg.NotifySchedule,
		"timezone", loc.String(),
		"amqp_enabled", cfg.AMQPURL != "")

	res, err := cli.OpenBackend(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to open backend", log.FieldError, err)
		os.Exit(1)
	}

	processor := services.NewReminderProcessor(res.Service, res.Publisher)
	job := func(ctx context.Context, now time.Time) error {
		n, err := processor.Process(ctx, now.In(loc))
		if err != nil {
			return err
		}
		logger.InfoContext(ctx, "Reminders sent", log.FieldOperation, log.OpRemind, log.FieldCount, n)
		return nil
	}

	if *once {
		err := job(context.Background(), time.Now())
		if cerr := res.Cleanup(); cerr != nil {
			logger.Warn("Cleanup failed", log.FieldError, cerr)
		}
		if err != nil {
			logger.Error("Reminder run failed", log.FieldError, err)
			os.Exit(1)
		}
		return
	}

	sched, err := scheduler.New(cfg.NotifySchedule, loc, job, logger)
	if err != nil {
		logger.Error("Failed to create scheduler", log.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(shutdownCtx context.Context) {
		if err := sched.Stop(shutdownCtx); err != nil {
			logger.Error("Scheduler did not stop cleanly", log.FieldError, err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Cleanup failed", log.FieldError, err)
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Start(gctx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				logger.Debug("Scheduler heartbeat", "next_run", sched.Next())
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("Reminder daemon failed", log.FieldError, err)
		os.Exit(1)
	}
	cli.WaitForShutdown(ctx, done)
}
