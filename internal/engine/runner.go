package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/Aliikhatami94/workbox/internal/job"
	"github.com/Aliikhatami94/workbox/internal/queue"
)

// EnvJobTimeout overrides the default per-job execution timeout, in seconds.
const EnvJobTimeout = "JOB_DEFAULT_TIMEOUT_SECONDS"

const (
	defaultPollInterval = 300 * time.Millisecond
	defaultVisibility   = time.Minute
	defaultJobTimeout   = 30 * time.Second
	claimErrorBackoff   = time.Second
)

// Runner polls a queue and executes a handler per reserved job. Handler
// errors and timeouts route the job to Fail (retry with backoff, then
// dead-letter); success routes to Ack.
type Runner struct {
	queue        queue.Queue
	handler      job.Handler
	pollInterval time.Duration
	visibility   time.Duration
	timeout      time.Duration
	logger       *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithPollInterval sets the idle delay between empty polls.
func WithPollInterval(d time.Duration) RunnerOption {
	return func(r *Runner) { r.pollInterval = d }
}

// WithVisibility sets the lease duration passed to ReserveNext.
func WithVisibility(d time.Duration) RunnerOption {
	return func(r *Runner) { r.visibility = d }
}

// WithJobTimeout bounds handler execution per job.
func WithJobTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) { r.timeout = d }
}

// WithRunnerLogger sets the runner logger.
func WithRunnerLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner builds a runner over q invoking handler for each job.
func NewRunner(q queue.Queue, handler job.Handler, opts ...RunnerOption) *Runner {
	r := &Runner{
		queue:        q,
		handler:      handler,
		pollInterval: defaultPollInterval,
		visibility:   defaultVisibility,
		timeout:      jobTimeoutFromEnv(),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches the poll loop in a background goroutine. Starting an
// already-running runner is a no-op.
func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.loop(ctx)
}

// Stop halts new reservations immediately and waits up to grace for an
// in-flight handler to finish. It returns true when the loop exited within
// the grace window; false means the loop was abandoned mid-handler — the
// handler keeps running to completion in its goroutine, and if the process
// dies first the job's lease expires and another worker re-reserves it.
func (r *Runner) Stop(grace time.Duration) bool {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel = nil
	r.mu.Unlock()

	if cancel == nil {
		return true
	}
	cancel()

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// ProcessOne performs a single reserve/execute cycle. It reports whether a
// job was processed (regardless of handler outcome). Infrastructure errors
// from the queue propagate to the caller.
func (r *Runner) ProcessOne(ctx context.Context) (bool, error) {
	j, err := r.queue.ReserveNext(ctx, r.visibility)
	if err != nil {
		return false, err
	}
	if j == nil {
		return false, nil
	}
	r.execute(ctx, j)
	return true, nil
}

// RunN runs up to n poll loop iterations and returns, for cron-style
// invocations.
func (r *Runner) RunN(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		processed, err := r.ProcessOne(ctx)
		if err != nil {
			r.logger.Error("reserve failed", "error", err)
			if err := r.sleep(ctx, claimErrorBackoff); err != nil {
				return err
			}
			continue
		}
		if !processed {
			if err := r.sleep(ctx, r.pollInterval); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		processed, err := r.ProcessOne(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			r.logger.Error("reserve failed", "error", err)
			if r.sleep(ctx, claimErrorBackoff) != nil {
				return
			}
			continue
		}
		if !processed {
			if r.sleep(ctx, r.pollInterval) != nil {
				return
			}
		}
	}
}

// execute runs the handler under the job timeout. The handler context is
// detached from the loop context: a graceful stop must not cancel work that
// is already in flight.
func (r *Runner) execute(ctx context.Context, j *job.Job) {
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- r.handler(hctx, j)
	}()

	var err error
	select {
	case err = <-done:
	case <-hctx.Done():
		err = fmt.Errorf("job %s (%s) timed out after %s: %w", j.ID, j.Name, r.timeout, hctx.Err())
	}

	// Ack/Fail must go through even when the loop context is canceled.
	qctx := context.WithoutCancel(ctx)
	if err != nil {
		r.logger.Warn("job failed",
			"job_id", j.ID,
			"name", j.Name,
			"attempt", j.Attempts,
			"max_attempts", j.MaxAttempts,
			"error", err,
		)
		if failErr := r.queue.Fail(qctx, j.ID, err); failErr != nil {
			r.logger.Error("fail update lost", "job_id", j.ID, "error", failErr)
		}
		return
	}

	if ackErr := r.queue.Ack(qctx, j.ID); ackErr != nil {
		r.logger.Error("ack lost", "job_id", j.ID, "error", ackErr)
		return
	}
	r.logger.Info("job done", "job_id", j.ID, "name", j.Name, "attempt", j.Attempts)
}

func (r *Runner) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func jobTimeoutFromEnv() time.Duration {
	if v := os.Getenv(EnvJobTimeout); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return defaultJobTimeout
}
