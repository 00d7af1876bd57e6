package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"lab-inventory-backend/internal/config"
	"lab-inventory-backend/internal/jobs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	reminders atomic.Int32
	overdue   atomic.Int32
	block     bool
	released  chan struct{}
}

func (r *stubRunner) SendDueDateReminders(ctx context.Context) jobs.PassResult {
	r.reminders.Add(1)
	return jobs.PassResult{}
}

func (r *stubRunner) MarkOverdueBorrows(ctx context.Context) jobs.PassResult {
	r.overdue.Add(1)
	if r.block {
		<-ctx.Done()
		close(r.released)
	}
	return jobs.PassResult{}
}

func cfg(runOnStart bool) config.SchedulerConfig {
	return config.SchedulerConfig{
		Enabled:      true,
		DueReminders: "@every 24h",
		OverdueCheck: "0 0 1 * * *",
		RunOnStart:   &runOnStart,
	}
}

func TestScheduler_RunOnStart(t *testing.T) {
	runner := &stubRunner{}
	s, err := NewScheduler(runner, cfg(true))
	require.NoError(t, err)
	assert.Equal(t, 2, s.Entries())

	s.Start()
	assert.True(t, s.IsRunning())

	assert.Eventually(t, func() bool {
		return runner.reminders.Load() == 1 && runner.overdue.Load() == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, s.Stop(context.Background()))
	assert.False(t, s.IsRunning())
	assert.NoError(t, s.Stop(context.Background()), "second stop is a no-op")
}

func TestScheduler_NoRunOnStart(t *testing.T) {
	runner := &stubRunner{}
	s, err := NewScheduler(runner, cfg(false))
	require.NoError(t, err)

	s.Start()
	require.NoError(t, s.Stop(context.Background()))
	assert.Zero(t, runner.reminders.Load())
	assert.Zero(t, runner.overdue.Load())
}

func TestScheduler_InvalidSpec(t *testing.T) {
	c := cfg(false)
	c.OverdueCheck = "every midnight"
	_, err := NewScheduler(&stubRunner{}, c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), jobs.PassMarkOverdue)
}

func TestScheduler_StopIsBounded(t *testing.T) {
	runner := &stubRunner{block: true, released: make(chan struct{})}
	s, err := NewScheduler(runner, cfg(true))
	require.NoError(t, err)
	s.Start()

	assert.Eventually(t, func() bool { return runner.overdue.Load() == 1 }, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = s.Stop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-runner.released:
	case <-time.After(time.Second):
		t.Fatal("in-flight pass was not cancelled")
	}
}
