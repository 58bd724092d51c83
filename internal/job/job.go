package job

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultMaxAttempts bounds retries before a job is dead-lettered.
	DefaultMaxAttempts = 5
	// DefaultBackoffSeconds is the base delay applied after the first failure.
	DefaultBackoffSeconds = 60
)

// Payload is the opaque structured value carried by a job. It round-trips
// through JSON in durable backends, so values should stay JSON-representable.
type Payload map[string]any

// Job is a unit of background work. A job is reservable when AvailableAt has
// passed and no valid lease (ReservedUntil) is held on it.
type Job struct {
	ID             string
	Name           string
	Payload        Payload
	Attempts       int
	MaxAttempts    int
	BackoffSeconds int
	LastError      string
	CreatedAt      time.Time
	AvailableAt    time.Time
	ReservedUntil  time.Time
}

// Leased reports whether the job holds a valid lease at the given instant.
func (j *Job) Leased(now time.Time) bool {
	return j.ReservedUntil.After(now)
}

// NewID returns a fresh job identifier.
func NewID() string {
	return uuid.NewString()
}

// Handler executes one job. A nil return acknowledges the job; any error
// routes it to the retry/backoff path. Handlers must be idempotent: lease
// expiry after a crash or an abandoned grace period causes re-execution.
type Handler func(ctx context.Context, j *Job) error
