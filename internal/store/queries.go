package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Aliikhatami94/workbox/internal/job"
)

// JobState classifies a queued job for operator listings. Jobs have no state
// column; the lease and availability timestamps encode it.
type JobState string

const (
	StateReady     JobState = "ready"
	StateScheduled JobState = "scheduled"
	StateLeased    JobState = "leased"
	StateDead      JobState = "dead"
)

// StateOf derives the listing state of a job at the given instant.
func StateOf(j *job.Job, now time.Time) JobState {
	switch {
	case j.Leased(now):
		return StateLeased
	case j.AvailableAt.After(now):
		return StateScheduled
	default:
		return StateReady
	}
}

// ListJobs returns all queued (not dead-lettered) jobs in enqueue order.
func (s *Store) ListJobs(ctx context.Context) ([]job.Job, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, name, payload, attempts, max_attempts, backoff_seconds, last_error,
		       created_at, available_at, reserved_until
		FROM jobs
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []job.Job
	for rows.Next() {
		var (
			j         job.Job
			body      string
			createdAt int64
			available int64
			reserved  int64
		)
		if err := rows.Scan(
			&j.ID, &j.Name, &body, &j.Attempts, &j.MaxAttempts, &j.BackoffSeconds, &j.LastError,
			&createdAt, &available, &reserved,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(body), &j.Payload); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		j.CreatedAt = time.Unix(0, createdAt).UTC()
		j.AvailableAt = time.Unix(0, available).UTC()
		if reserved > 0 {
			j.ReservedUntil = time.Unix(0, reserved).UTC()
		}
		result = append(result, j)
	}
	return result, rows.Err()
}

// QueueStatus summarizes the queue by derived state plus the dead-letter count.
func (s *Store) QueueStatus(ctx context.Context) (map[JobState]int, error) {
	now := time.Now().UTC().UnixNano()
	stats := map[JobState]int{}

	counts := []struct {
		state JobState
		query string
		args  []any
	}{
		{StateReady, `SELECT COUNT(*) FROM jobs WHERE available_at <= ? AND reserved_until <= ?`, []any{now, now}},
		{StateScheduled, `SELECT COUNT(*) FROM jobs WHERE available_at > ? AND reserved_until <= ?`, []any{now, now}},
		{StateLeased, `SELECT COUNT(*) FROM jobs WHERE reserved_until > ?`, []any{now}},
	}
	for _, c := range counts {
		var n int
		if err := s.DB.QueryRowContext(ctx, c.query, c.args...).Scan(&n); err != nil {
			return nil, err
		}
		stats[c.state] = n
	}

	var dead int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM dlq`).Scan(&dead); err != nil {
		return nil, err
	}
	stats[StateDead] = dead
	return stats, nil
}
