package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lab-inventory-backend/internal/api/grpc"
	httpapi "lab-inventory-backend/internal/api/http"
	"lab-inventory-backend/internal/app"
	"lab-inventory-backend/internal/config"
	"lab-inventory-backend/internal/logger"
	"lab-inventory-backend/internal/scheduler"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Lab Inventory Backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "address", cfg.GetServerAddress(), "grpc_address", cfg.GetGRPCAddress())

	ctx := context.Background()
	a, err := app.New(ctx, cfg, nil)
	if err != nil {
		logger.Error("Failed to initialize application", "error", err)
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer a.Close()

	a.Dispatcher.Start(ctx)

	// Initialize Scheduler
	var cronScheduler *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		cronScheduler, err = scheduler.NewScheduler(a.Jobs, cfg.Scheduler)
		if err != nil {
			logger.Error("Failed to create scheduler", "error", err)
			log.Fatalf("Failed to create scheduler: %v", err)
		}
		cronScheduler.Start()
	} else {
		logger.Info("Scheduler disabled, run cmd/cronjob separately")
	}
	schedulerRunning := func() bool { return cronScheduler == nil || cronScheduler.IsRunning() }
	health := func() map[string]bool { return a.Health(schedulerRunning) }

	// Set up HTTP server
	router := httpapi.NewRouter(httpapi.Deps{
		Auth:         a.AuthSvc,
		Items:        a.ItemSvc,
		Borrows:      a.BorrowSvc,
		Users:        a.UserSvc,
		TokenManager: a.TokenManager,
		Clock:        a.Clock,
		Health:       health,
	})
	httpServer := &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("HTTP server listening", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			log.Fatalf("Failed to serve HTTP: %v", err)
		}
	}()

	// Set up gRPC health server
	var healthServer *grpc.HealthServer
	if addr := cfg.GetGRPCAddress(); addr != "" {
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			logger.Error("Failed to listen", "error", err, "address", addr)
			log.Fatalf("Failed to listen: %v", err)
		}
		healthServer = grpc.NewHealthServer(map[string]grpc.Check{
			"dispatcher": a.Dispatcher.Running,
			"scheduler":  schedulerRunning,
		}, 5*time.Second)
		go func() {
			if err := healthServer.Serve(lis); err != nil {
				logger.Error("Failed to serve gRPC health", "error", err)
			}
		}()
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Scheduler.ShutdownTimeout())
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown incomplete", "error", err)
	}
	if cronScheduler != nil {
		if err := cronScheduler.Stop(shutdownCtx); err != nil {
			logger.Warn("Scheduler shutdown incomplete", "error", err)
		}
	}
	if err := a.Dispatcher.Stop(shutdownCtx); err != nil {
		logger.Warn("Notification dispatcher shutdown incomplete", "error", err)
	}
	if healthServer != nil {
		healthServer.Stop(shutdownCtx)
	}
	logger.Info("Server stopped. Goodbye!")
}
