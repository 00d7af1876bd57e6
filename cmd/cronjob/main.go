package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"lab-inventory-backend/internal/app"
	"lab-inventory-backend/internal/config"
	"lab-inventory-backend/internal/jobs"
	"lab-inventory-backend/internal/logger"
	"lab-inventory-backend/internal/scheduler"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a pass once and exit ('due-reminders', 'mark-overdue' or 'all')")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Lab Inventory Cronjob Runner...", "log_level", cfg.Log.Level)

	ctx := context.Background()
	a, err := app.New(ctx, cfg, nil)
	if err != nil {
		logger.Error("Failed to initialize application", "error", err)
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer a.Close()

	// Notifications raised by the passes go out through the dispatcher
	a.Dispatcher.Start(ctx)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Scheduler.ShutdownTimeout())
		defer cancel()
		if err := a.Dispatcher.Stop(stopCtx); err != nil {
			logger.Warn("Notification dispatcher shutdown incomplete", "error", err)
		}
	}()

	// Check if running a single pass
	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		if err := runJobOnce(ctx, a.Jobs, *runOnce); err != nil {
			logger.Error("Unknown job name", "job", *runOnce)
			fmt.Printf("Available jobs:\n")
			fmt.Printf("  - %s\n", jobs.PassDueReminders)
			fmt.Printf("  - %s\n", jobs.PassMarkOverdue)
			fmt.Printf("  - all\n")
			a.Close()
			os.Exit(1)
		}
		logger.Info("Job execution completed", "job", *runOnce)
		return
	}

	// Initialize Scheduler
	cronScheduler, err := scheduler.NewScheduler(a.Jobs, cfg.Scheduler)
	if err != nil {
		logger.Error("Failed to create scheduler", "error", err)
		log.Fatalf("Failed to create scheduler: %v", err)
	}

	// Start scheduler
	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down cronjob scheduler...")
	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Scheduler.ShutdownTimeout())
	defer cancel()
	if err := cronScheduler.Stop(stopCtx); err != nil {
		logger.Warn("Scheduler shutdown incomplete", "error", err)
	}
	logger.Info("Cronjob scheduler stopped. Goodbye!")
}

// runJobOnce runs one pass, or both with "all"
func runJobOnce(ctx context.Context, jobRunner *jobs.JobRunner, jobName string) error {
	if jobName == "all" {
		jobRunner.RunAll(ctx)
		return nil
	}
	_, err := jobRunner.Run(ctx, jobName)
	return err
}
