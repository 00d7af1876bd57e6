package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"lab-inventory-backend/internal/domain"
	"lab-inventory-backend/internal/logger"
	"lab-inventory-backend/internal/metrics"
)

// Resolver hydrates the borrow carried by an event.
type Resolver interface {
	Hydrate(ctx context.Context, rec domain.BorrowRecord) (*domain.BorrowDetails, error)
}

type Options struct {
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
}

// ErrStopped is returned by NotifyWait once Stop has been called.
var ErrStopped = errors.New("notification dispatcher stopped")

// Dispatcher delivers notification events on a fixed pool of workers.
// Notify never blocks and never reports delivery errors: a full queue drops
// the event, a failed send is logged. NotifyWait is the back-pressured
// variant for batch callers.
type Dispatcher struct {
	resolver    Resolver
	mailer      Mailer
	queue       chan domain.NotificationEvent
	workers     int
	sendTimeout time.Duration

	// quit is closed first thing in Stop so blocked NotifyWait callers let
	// go of mu.
	quit     chan struct{}
	quitOnce sync.Once

	mu      sync.RWMutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewDispatcher(resolver Resolver, mailer Mailer, opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 10 * time.Second
	}
	return &Dispatcher{
		resolver:    resolver,
		mailer:      mailer,
		queue:       make(chan domain.NotificationEvent, opts.QueueSize),
		workers:     opts.Workers,
		sendTimeout: opts.SendTimeout,
		quit:        make(chan struct{}),
	}
}

// Start launches the workers. Events queued before Start are kept.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.started = true

	ctx, d.cancel = context.WithCancel(ctx)
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}
	logger.Info("Notification dispatcher started", "workers", d.workers, "queueSize", cap(d.queue))
}

func (d *Dispatcher) Notify(event domain.NotificationEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		logger.Warn("Notification dropped, dispatcher stopped", "kind", event.Kind, "borrowCode", event.Record.Code)
		metrics.ObserveNotification(string(event.Kind), "dropped")
		return
	}

	select {
	case d.queue <- event:
		metrics.SetNotificationQueue(len(d.queue))
	default:
		logger.Error("Notification dropped, queue full", "kind", event.Kind, "borrowCode", event.Record.Code)
		metrics.ObserveNotification(string(event.Kind), "dropped")
	}
}

// NotifyWait queues event, waiting for room until ctx ends. A nil error
// means a worker will attempt delivery; it does not mean the mail was sent.
func (d *Dispatcher) NotifyWait(ctx context.Context, event domain.NotificationEvent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		metrics.ObserveNotification(string(event.Kind), "dropped")
		return ErrStopped
	}

	select {
	case d.queue <- event:
		metrics.SetNotificationQueue(len(d.queue))
		return nil
	case <-d.quit:
		metrics.ObserveNotification(string(event.Kind), "dropped")
		return ErrStopped
	case <-ctx.Done():
		metrics.ObserveNotification(string(event.Kind), "dropped")
		return fmt.Errorf("queue %s notification for %s: %w", event.Kind, event.Record.Code, ctx.Err())
	}
}

// Stop stops accepting events and lets the workers drain the queue. If ctx
// ends first, in-flight sends are cancelled and the remaining events dropped.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.quitOnce.Do(func() { close(d.quit) })
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		logger.Info("Notification dispatcher stopped")
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return fmt.Errorf("notification dispatcher stop: %w", ctx.Err())
	}
}

// Running reports whether workers are consuming events.
func (d *Dispatcher) Running() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.started && !d.stopped
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()
	for event := range d.queue {
		metrics.SetNotificationQueue(len(d.queue))
		if ctx.Err() != nil {
			metrics.ObserveNotification(string(event.Kind), "dropped")
			continue
		}
		d.deliver(ctx, event)
	}
	logger.DebugContext(ctx, "Notification worker exiting", "worker", id)
}

func (d *Dispatcher) deliver(ctx context.Context, event domain.NotificationEvent) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Notification panic recovered", "kind", event.Kind, "borrowCode", event.Record.Code, "panic", r)
			metrics.ObserveNotification(string(event.Kind), "failed")
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	err := d.send(ctx, event)
	if err != nil {
		logger.ErrorContext(ctx, "Notification failed",
			"kind", event.Kind,
			"borrowCode", event.Record.Code,
			"error", err,
		)
		metrics.ObserveNotification(string(event.Kind), "failed")
		return
	}
	metrics.ObserveNotification(string(event.Kind), "sent")
}

func (d *Dispatcher) send(ctx context.Context, event domain.NotificationEvent) error {
	details, err := d.resolver.Hydrate(ctx, event.Record)
	if err != nil {
		return fmt.Errorf("hydrate: %w", err)
	}
	intent := domain.NotificationIntent{
		Kind:           event.Kind,
		Borrow:         *details,
		PreviousStatus: event.PreviousStatus,
	}
	return d.mailer.Send(ctx, intent)
}
