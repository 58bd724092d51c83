package queue

import (
	"context"
	"time"

	"github.com/Aliikhatami94/workbox/internal/job"
)

// DefaultBackoffCap bounds the exponential backoff delay.
const DefaultBackoffCap = time.Hour

// Queue is the reservation-based work queue contract. Implementations must
// make ReserveNext atomic: two concurrent callers, in the same process or
// not, can never claim the same job.
type Queue interface {
	// Enqueue creates a job available at now plus the configured delay.
	Enqueue(ctx context.Context, name string, payload job.Payload, opts ...EnqueueOption) (*job.Job, error)

	// ReserveNext claims the oldest job whose available_at has passed and
	// whose lease, if any, has expired. It increments the attempt counter
	// and sets the lease to now+visibility. Returns nil when no job is
	// eligible.
	ReserveNext(ctx context.Context, visibility time.Duration) (*job.Job, error)

	// Ack removes a job after successful execution. Acking an unknown or
	// already-acked id is a no-op.
	Ack(ctx context.Context, id string) error

	// Fail records a failed execution. While attempts remain the job is
	// rescheduled after an exponential backoff and its lease is cleared;
	// once attempts reach the maximum it moves to the dead-letter list.
	Fail(ctx context.Context, id string, jobErr error) error

	// DeadLetters lists jobs that exhausted their attempts.
	DeadLetters(ctx context.Context) ([]job.Job, error)
}

// EnqueueOptions carries per-job overrides for Enqueue.
type EnqueueOptions struct {
	Delay       time.Duration
	MaxAttempts int
	Backoff     time.Duration
}

// EnqueueOption mutates EnqueueOptions.
type EnqueueOption func(*EnqueueOptions)

// WithDelay defers the job's first availability.
func WithDelay(d time.Duration) EnqueueOption {
	return func(o *EnqueueOptions) { o.Delay = d }
}

// WithMaxAttempts overrides the default attempt bound.
func WithMaxAttempts(n int) EnqueueOption {
	return func(o *EnqueueOptions) { o.MaxAttempts = n }
}

// WithBackoff overrides the base backoff delay applied on failure.
func WithBackoff(d time.Duration) EnqueueOption {
	return func(o *EnqueueOptions) { o.Backoff = d }
}

// ApplyEnqueueOptions resolves options against the package defaults.
func ApplyEnqueueOptions(opts []EnqueueOption) EnqueueOptions {
	o := EnqueueOptions{
		MaxAttempts: job.DefaultMaxAttempts,
		Backoff:     job.DefaultBackoffSeconds * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = job.DefaultMaxAttempts
	}
	if o.Backoff <= 0 {
		o.Backoff = job.DefaultBackoffSeconds * time.Second
	}
	return o
}

// Backoff computes the delay before the next attempt:
// min(base * 2^(attempts-1), cap). attempts is the count of failed attempts
// so far, at least 1.
func Backoff(base time.Duration, attempts int, capDur time.Duration) time.Duration {
	if capDur <= 0 {
		capDur = DefaultBackoffCap
	}
	if attempts < 1 {
		attempts = 1
	}
	// Shifting past 62 bits overflows time.Duration long before any sane cap.
	if attempts > 32 {
		return capDur
	}
	d := base << uint(attempts-1)
	if d <= 0 || d > capDur {
		return capDur
	}
	return d
}
