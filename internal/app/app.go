// Package app wires configuration into stores, services, the notification
// dispatcher and the job runner. Both binaries under cmd/ start from here.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"lab-inventory-backend/internal/clock"
	"lab-inventory-backend/internal/config"
	"lab-inventory-backend/internal/jobs"
	"lab-inventory-backend/internal/lock"
	"lab-inventory-backend/internal/logger"
	"lab-inventory-backend/internal/notification"
	"lab-inventory-backend/internal/repository"
	"lab-inventory-backend/internal/repository/memory"
	"lab-inventory-backend/internal/repository/postgres"
	"lab-inventory-backend/internal/security"
	"lab-inventory-backend/internal/service"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

type App struct {
	Config *config.Config
	Clock  clock.Clock

	DB    *sql.DB
	Redis *redis.Client

	Users   repository.UserRepository
	Items   repository.ItemRepository
	Borrows repository.BorrowRepository

	TokenManager security.TokenManager
	AuthSvc      service.AuthService
	ItemSvc      service.ItemService
	BorrowSvc    service.BorrowService
	UserSvc      service.UserService

	Dispatcher *notification.Dispatcher
	Jobs       *jobs.JobRunner
}

// New builds the application. The dispatcher is created but not started.
func New(ctx context.Context, cfg *config.Config, c clock.Clock) (*App, error) {
	if c == nil {
		c = clock.New()
	}
	a := &App{Config: cfg, Clock: c}

	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.TokenManager = security.NewTokenManager(cfg.JWT.Secret, time.Duration(cfg.JWT.AccessTokenExpiry)*time.Minute)

	hydrator := service.NewHydrator(a.Users, a.Items, c)
	a.Dispatcher = notification.NewDispatcher(hydrator, newMailer(cfg.Mail), notification.Options{
		Workers:     cfg.Notification.Workers,
		QueueSize:   cfg.Notification.QueueSize,
		SendTimeout: cfg.Notification.SendTimeout(),
	})

	gate := service.NewAvailabilityGate(a.Items)
	a.AuthSvc = service.NewAuthService(a.Users, a.TokenManager)
	a.ItemSvc = service.NewItemService(a.Items, c)
	a.UserSvc = service.NewUserService(a.Users)
	a.BorrowSvc = service.NewBorrowService(a.Borrows, gate, hydrator, a.Dispatcher, c)

	a.Jobs = jobs.NewJobRunner(a.Borrows, a.BorrowSvc, a.Dispatcher, c, a.newLocker(ctx), jobs.Options{
		PassTimeout: cfg.Scheduler.PassTimeout(),
		LockTTL:     cfg.Redis.LockTTL(),
	})

	if err := a.bootstrapAdmin(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	cfg := a.Config.Database
	if cfg.Driver == "memory" {
		logger.Warn("Using in-memory store, data is lost on exit")
		store := memory.NewStore(a.Clock)
		a.Users, a.Items, a.Borrows = store.Users(), store.Items(), store.Borrows()
		return nil
	}

	logger.Info("Connecting to database...", "host", cfg.Host, "port", cfg.Port, "database", cfg.Database, "user", cfg.User)
	db, err := sql.Open("postgres", a.Config.GetDatabaseConnectionString())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.DB = db

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		return err
	}
	logger.Info("Database connection established")

	store := postgres.NewStore(db, a.Clock)
	a.Users, a.Items, a.Borrows = store.UserRepository, store.ItemRepository, store.BorrowRepository
	return nil
}

func newMailer(cfg config.MailConfig) notification.Mailer {
	if cfg.Provider == "sendgrid" {
		logger.Info("Mail provider configured", "provider", "sendgrid", "from", cfg.From)
		return notification.NewSendGridMailer(cfg.APIKey, cfg.From, cfg.FromName, cfg.AdminEmail)
	}
	logger.Info("Mail provider configured", "provider", "log")
	return notification.NewLogMailer(cfg.AdminEmail)
}

// newLocker returns a redis lock when configured. An unreachable redis is
// logged but still used: passes then run without the lock.
func (a *App) newLocker(ctx context.Context) lock.Locker {
	cfg := a.Config.Redis
	if cfg.Addr == "" {
		return lock.NewLocal()
	}
	a.Redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := a.Redis.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis not reachable, scheduler passes will run unlocked until it is", "addr", cfg.Addr, "error", err)
	} else {
		logger.Info("Redis scheduler lock enabled", "addr", cfg.Addr)
	}
	return lock.NewRedisLocker(a.Redis)
}

func (a *App) bootstrapAdmin(ctx context.Context) error {
	b := a.Config.Bootstrap
	if b.AdminEmail == "" {
		return nil
	}
	admin, err := a.AuthSvc.EnsureAdmin(ctx, b.AdminName, b.AdminEmail, b.AdminPassword)
	if err != nil {
		return fmt.Errorf("failed to bootstrap admin: %w", err)
	}
	logger.Info("Admin account ready", "email", admin.Email, "id", admin.ID)
	return nil
}

// Health reports the background components for /healthz and grpc health.
func (a *App) Health(schedulerRunning func() bool) map[string]bool {
	h := map[string]bool{"dispatcher": a.Dispatcher != nil && a.Dispatcher.Running()}
	if schedulerRunning != nil {
		h["scheduler"] = schedulerRunning()
	}
	return h
}

// Close releases the database and redis connections.
func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
