package queue

import (
	"context"
	"sync"
	"time"

	"github.com/Aliikhatami94/workbox/internal/job"
)

// Memory is the in-process queue backend. A single mutex guards the scan in
// ReserveNext, which is all the atomicity a one-process deployment needs.
type Memory struct {
	mu         sync.Mutex
	jobs       []*job.Job
	dead       []job.Job
	backoffCap time.Duration
	now        func() time.Time
}

// MemoryOption configures a Memory queue.
type MemoryOption func(*Memory)

// WithBackoffCap bounds the computed backoff delay.
func WithBackoffCap(d time.Duration) MemoryOption {
	return func(m *Memory) { m.backoffCap = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory returns an empty in-process queue.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		backoffCap: DefaultBackoffCap,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Enqueue(_ context.Context, name string, payload job.Payload, opts ...EnqueueOption) (*job.Job, error) {
	o := ApplyEnqueueOptions(opts)
	now := m.now()

	j := &job.Job{
		ID:             job.NewID(),
		Name:           name,
		Payload:        payload,
		MaxAttempts:    o.MaxAttempts,
		BackoffSeconds: int(o.Backoff / time.Second),
		CreatedAt:      now,
		AvailableAt:    now.Add(o.Delay),
	}

	m.mu.Lock()
	m.jobs = append(m.jobs, j)
	m.mu.Unlock()

	cp := *j
	return &cp, nil
}

func (m *Memory) ReserveNext(_ context.Context, visibility time.Duration) (*job.Job, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	for i, j := range m.jobs {
		if j.AvailableAt.After(now) || j.Leased(now) {
			continue
		}
		j.Attempts++
		// A lease that expired without ack/fail can push a job past its
		// attempt bound; such jobs go straight to the dead-letter list.
		if j.Attempts > j.MaxAttempts {
			m.dead = append(m.dead, *j)
			m.jobs = append(m.jobs[:i], m.jobs[i+1:]...)
			return nil, nil
		}
		j.ReservedUntil = now.Add(visibility)
		cp := *j
		return &cp, nil
	}
	return nil, nil
}

func (m *Memory) Ack(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, j := range m.jobs {
		if j.ID == id {
			m.jobs = append(m.jobs[:i], m.jobs[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *Memory) Fail(_ context.Context, id string, jobErr error) error {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	for i, j := range m.jobs {
		if j.ID != id {
			continue
		}
		if jobErr != nil {
			j.LastError = jobErr.Error()
		}
		if j.Attempts >= j.MaxAttempts {
			m.dead = append(m.dead, *j)
			m.jobs = append(m.jobs[:i], m.jobs[i+1:]...)
			return nil
		}
		delay := Backoff(time.Duration(j.BackoffSeconds)*time.Second, j.Attempts, m.backoffCap)
		j.AvailableAt = now.Add(delay)
		j.ReservedUntil = time.Time{}
		return nil
	}
	return nil
}

func (m *Memory) DeadLetters(_ context.Context) ([]job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]job.Job, len(m.dead))
	copy(out, m.dead)
	return out, nil
}
