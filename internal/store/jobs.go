package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Aliikhatami94/workbox/internal/job"
	"github.com/Aliikhatami94/workbox/internal/queue"
)

// JobStore is the SQLite-backed queue.Queue. Reservation uses a conditional
// UPDATE with a rows-affected check, so two processes racing on the same
// database file cannot both claim a job.
type JobStore struct {
	s *Store
}

func (js *JobStore) Enqueue(ctx context.Context, name string, payload job.Payload, opts ...queue.EnqueueOption) (*job.Job, error) {
	o := queue.ApplyEnqueueOptions(opts)
	now := time.Now().UTC()

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	j := &job.Job{
		ID:             job.NewID(),
		Name:           name,
		Payload:        payload,
		MaxAttempts:    o.MaxAttempts,
		BackoffSeconds: int(o.Backoff / time.Second),
		CreatedAt:      now,
		AvailableAt:    now.Add(o.Delay),
	}

	_, err = js.s.DB.ExecContext(ctx, `
		INSERT INTO jobs (id, name, payload, attempts, max_attempts, backoff_seconds, created_at, available_at, reserved_until)
		VALUES (?, ?, ?, 0, ?, ?, ?, ?, 0)
	`, j.ID, j.Name, string(body), j.MaxAttempts, j.BackoffSeconds,
		j.CreatedAt.UnixNano(), j.AvailableAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("enqueue failed: %w", err)
	}
	return j, nil
}

func (js *JobStore) ReserveNext(ctx context.Context, visibility time.Duration) (*job.Job, error) {
	now := time.Now().UTC()

	tx, err := js.s.DB.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRowContext(ctx, `
		SELECT id
		FROM jobs
		WHERE available_at <= ?
		  AND reserved_until <= ?
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`, now.UnixNano(), now.UnixNano()).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select ready job: %w", err)
	}

	// The claim step: only succeeds if nobody re-leased the row in between.
	res, err := tx.ExecContext(ctx, `
		UPDATE jobs
		SET attempts = attempts + 1, reserved_until = ?
		WHERE id = ? AND reserved_until <= ?
	`, now.Add(visibility).UnixNano(), id, now.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("claim update: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows != 1 {
		return nil, nil
	}

	j, err := scanJobTx(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("reload job after claim: %w", err)
	}

	// A lease that expired after the final allowed attempt leaves a job
	// whose next reservation would exceed the bound; dead-letter it here.
	if j.Attempts > j.MaxAttempts {
		if err := moveToDLQTx(ctx, tx, j, now); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("tx commit: %w", err)
		}
		return nil, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("tx commit: %w", err)
	}
	return j, nil
}

func (js *JobStore) Ack(ctx context.Context, id string) error {
	_, err := js.s.DB.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	return err
}

func (js *JobStore) Fail(ctx context.Context, id string, jobErr error) error {
	now := time.Now().UTC()

	tx, err := js.s.DB.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	j, err := scanJobTx(ctx, tx, id)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if jobErr != nil {
		j.LastError = jobErr.Error()
	}

	if j.Attempts >= j.MaxAttempts {
		if err := moveToDLQTx(ctx, tx, j, now); err != nil {
			return err
		}
		return tx.Commit()
	}

	capSeconds := js.s.configIntTx(ctx, tx, "backoff_cap_seconds", int(queue.DefaultBackoffCap/time.Second))
	delay := queue.Backoff(time.Duration(j.BackoffSeconds)*time.Second, j.Attempts, time.Duration(capSeconds)*time.Second)

	_, err = tx.ExecContext(ctx, `
		UPDATE jobs
		SET available_at = ?, reserved_until = 0, last_error = ?
		WHERE id = ?
	`, now.Add(delay).UnixNano(), j.LastError, id)
	if err != nil {
		return fmt.Errorf("reschedule job: %w", err)
	}
	return tx.Commit()
}

func (js *JobStore) DeadLetters(ctx context.Context) ([]job.Job, error) {
	return js.s.ListDLQ(ctx)
}

func scanJobTx(ctx context.Context, tx *sql.Tx, id string) (*job.Job, error) {
	var (
		j         job.Job
		body      string
		createdAt int64
		available int64
		reserved  int64
	)
	err := tx.QueryRowContext(ctx, `
		SELECT id, name, payload, attempts, max_attempts, backoff_seconds, last_error,
		       created_at, available_at, reserved_until
		FROM jobs
		WHERE id = ?
	`, id).Scan(
		&j.ID, &j.Name, &body, &j.Attempts, &j.MaxAttempts, &j.BackoffSeconds, &j.LastError,
		&createdAt, &available, &reserved,
	)
	if err != nil {
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
	return &j, nil
}

func moveToDLQTx(ctx context.Context, tx *sql.Tx, j *job.Job, now time.Time) error {
	body, err := json.Marshal(j.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO dlq(id, name, payload, attempts, max_attempts, last_error, failed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.Name, string(body), j.Attempts, j.MaxAttempts, j.LastError,
		now.UnixNano(), j.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("dead-letter insert: %w", err)
	}
	_, err = tx.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, j.ID)
	if err != nil {
		return fmt.Errorf("dead-letter delete: %w", err)
	}
	return nil
}
