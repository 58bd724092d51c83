package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Aliikhatami94/workbox/internal/job"
)

// ListDLQ returns dead-lettered jobs, most recently failed first.
func (s *Store) ListDLQ(ctx context.Context) ([]job.Job, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, name, payload, attempts, max_attempts, last_error, created_at
		FROM dlq
		ORDER BY failed_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []job.Job
	for rows.Next() {
		var (
			j         job.Job
			body      string
			createdAt int64
		)
		if err := rows.Scan(&j.ID, &j.Name, &body, &j.Attempts, &j.MaxAttempts, &j.LastError, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(body), &j.Payload); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		j.CreatedAt = time.Unix(0, createdAt).UTC()
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// RetryDLQ moves a dead-lettered job back into the queue with its attempt
// counter reset and immediate availability.
func (s *Store) RetryDLQ(ctx context.Context, jobID string) error {
	now := time.Now().UTC().UnixNano()

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO jobs (id, name, payload, attempts, max_attempts, backoff_seconds, created_at, available_at, reserved_until)
		SELECT id, name, payload, 0, max_attempts, ?, created_at, ?, 0
		FROM dlq WHERE id = ?
	`, job.DefaultBackoffSeconds, now, jobID)
	if err != nil {
		return err
	}

	_, err = s.DB.ExecContext(ctx, `DELETE FROM dlq WHERE id = ?`, jobID)
	return err
}
