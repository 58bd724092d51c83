package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type scheduledTask struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context) error
	lastRun  time.Time
}

// Scheduler drives named periodic tasks cooperatively: nothing runs until
// the owner calls Tick.
type Scheduler struct {
	mu     sync.Mutex
	tasks  []*scheduledTask
	logger *slog.Logger
	now    func() time.Time
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerLogger sets the scheduler logger.
func WithSchedulerLogger(l *slog.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = l }
}

// WithSchedulerClock overrides the time source.
func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler returns an empty scheduler.
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddTask registers a periodic task. An interval of zero makes the task due
// on every tick.
func (s *Scheduler) AddTask(name string, interval time.Duration, fn func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, &scheduledTask{name: name, interval: interval, fn: fn})
}

// Tick runs every task whose next-due time has passed, sequentially in
// registration order. The scheduler mutex is held for the whole tick, so
// concurrent Tick callers serialize instead of overlapping task runs. Task
// errors are logged and collected; one failing task does not stop the rest.
func (s *Scheduler) Tick(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var errs []error
	for _, t := range s.tasks {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if !t.lastRun.IsZero() && now.Sub(t.lastRun) < t.interval {
			continue
		}
		t.lastRun = now
		if err := t.fn(ctx); err != nil {
			s.logger.Error("scheduled task failed", "task", t.name, "error", err)
			errs = append(errs, fmt.Errorf("task %s: %w", t.name, err))
		}
	}
	return errors.Join(errs...)
}
