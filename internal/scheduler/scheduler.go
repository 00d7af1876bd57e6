package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"lab-inventory-backend/internal/clock"
	"lab-inventory-backend/internal/config"
	"lab-inventory-backend/internal/jobs"
	"lab-inventory-backend/internal/logger"

	"github.com/robfig/cron/v3"
)

// Runner is the part of jobs.JobRunner the scheduler drives.
type Runner interface {
	SendDueDateReminders(ctx context.Context) jobs.PassResult
	MarkOverdueBorrows(ctx context.Context) jobs.PassResult
}

// Scheduler manages cron job scheduling
type Scheduler struct {
	cron       *cron.Cron
	jobs       Runner
	runOnStart bool

	// ctx is handed to every pass and cancelled by Stop.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler with both borrow passes registered.
// Schedules are evaluated in WIB.
func NewScheduler(runner Runner, cfg config.SchedulerConfig) (*Scheduler, error) {
	// Create cron with WIB timezone and seconds precision
	cronLog := cron.PrintfLogger(slog.NewLogLogger(logger.WithComponent("cron").Handler(), slog.LevelInfo))
	c := cron.New(
		cron.WithLocation(clock.WIB),
		cron.WithSeconds(),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.SkipIfStillRunning(cronLog)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:       c,
		jobs:       runner,
		runOnStart: cfg.RunOnStart == nil || *cfg.RunOnStart,
		ctx:        ctx,
		cancel:     cancel,
	}

	if err := s.registerJobs(cfg); err != nil {
		cancel()
		return nil, err
	}
	return s, nil
}

// registerJobs registers all scheduled jobs with the cron scheduler
func (s *Scheduler) registerJobs(cfg config.SchedulerConfig) error {
	// Remind borrowers whose items are due today
	if _, err := s.cron.AddFunc(cfg.DueReminders, s.dueReminders); err != nil {
		return fmt.Errorf("register %s job: %w", jobs.PassDueReminders, err)
	}

	// Move late borrows to overdue
	if _, err := s.cron.AddFunc(cfg.OverdueCheck, s.markOverdue); err != nil {
		return fmt.Errorf("register %s job: %w", jobs.PassMarkOverdue, err)
	}

	logger.Info("All cron jobs registered successfully",
		jobs.PassDueReminders, cfg.DueReminders, jobs.PassMarkOverdue, cfg.OverdueCheck)
	return nil
}

func (s *Scheduler) dueReminders() {
	s.jobs.SendDueDateReminders(s.ctx)
}

func (s *Scheduler) markOverdue() {
	s.jobs.MarkOverdueBorrows(s.ctx)
}

// Start begins the cron scheduler. With run-on-start both passes also run
// once immediately, in the background.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	logger.Info("Starting cron scheduler...")
	s.cron.Start()
	s.running = true

	if s.runOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.dueReminders()
			s.markOverdue()
		}()
	}
	logger.Info("Cron scheduler started successfully", "runOnStart", s.runOnStart)
}

// Stop prevents new passes from starting and waits for in-flight passes up
// to ctx. When ctx ends first the passes are cancelled and ctx.Err() returned.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	logger.Info("Stopping cron scheduler...")
	cronDone := s.cron.Stop()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		logger.Info("Cron scheduler stopped")
		return nil
	case <-ctx.Done():
		s.cancel()
		logger.Warn("Cron scheduler stop timed out, in-flight passes cancelled")
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// IsRunning returns true if the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Entries reports the number of registered jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
