package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Aliikhatami94/workbox/internal/outbox"
)

// OutboxStore is the SQLite-backed outbox.Store.
type OutboxStore struct {
	s *Store
}

func (os *OutboxStore) Enqueue(ctx context.Context, topic string, payload map[string]any) (*outbox.Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	now := time.Now().UTC()

	res, err := os.s.DB.ExecContext(ctx, `
		INSERT INTO outbox (topic, payload, status, attempts, created_at)
		VALUES (?, ?, ?, 0, ?)
	`, topic, string(body), string(outbox.StatusPending), now.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("outbox enqueue: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("outbox id: %w", err)
	}

	return &outbox.Message{
		ID:        id,
		Topic:     topic,
		Payload:   payload,
		Status:    outbox.StatusPending,
		CreatedAt: now,
	}, nil
}

func (os *OutboxStore) FetchNext(ctx context.Context, topics ...string) (*outbox.Message, error) {
	now := time.Now().UTC()
	cutoff := now.Add(-os.s.RelayWindow).UnixNano()

	tx, err := os.s.DB.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `
		SELECT id FROM outbox
		WHERE status != 'processed'
		  AND (relayed_at IS NULL OR relayed_at <= ?)
	`
	args := []any{cutoff}
	if len(topics) > 0 {
		query += ` AND topic IN (?` + strings.Repeat(",?", len(topics)-1) + `)`
		for _, t := range topics {
			args = append(args, t)
		}
	}
	query += ` ORDER BY id ASC LIMIT 1`

	var id int64
	err = tx.QueryRowContext(ctx, query, args...).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select pending message: %w", err)
	}

	// Claim step: a concurrent fetcher that relayed this row first wins.
	res, err := tx.ExecContext(ctx, `
		UPDATE outbox SET relayed_at = ?
		WHERE id = ? AND (relayed_at IS NULL OR relayed_at <= ?)
	`, now.UnixNano(), id, cutoff)
	if err != nil {
		return nil, fmt.Errorf("claim message: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows != 1 {
		return nil, nil
	}

	msg, err := scanOutboxTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("tx commit: %w", err)
	}
	return msg, nil
}

func (os *OutboxStore) Get(ctx context.Context, id int64) (*outbox.Message, error) {
	var (
		msg         outbox.Message
		body        string
		status      string
		createdAt   int64
		processedAt sql.NullInt64
	)
	err := os.s.DB.QueryRowContext(ctx, `
		SELECT id, topic, payload, status, attempts, created_at, processed_at
		FROM outbox WHERE id = ?
	`, id).Scan(&msg.ID, &msg.Topic, &body, &status, &msg.Attempts, &createdAt, &processedAt)
	if err == sql.ErrNoRows {
		return nil, outbox.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(body), &msg.Payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	msg.Status = outbox.Status(status)
	msg.CreatedAt = time.Unix(0, createdAt).UTC()
	if processedAt.Valid {
		t := time.Unix(0, processedAt.Int64).UTC()
		msg.ProcessedAt = &t
	}
	return &msg, nil
}

func (os *OutboxStore) MarkProcessed(ctx context.Context, id int64) error {
	res, err := os.s.DB.ExecContext(ctx, `
		UPDATE outbox SET status = 'processed', processed_at = ?
		WHERE id = ?
	`, time.Now().UTC().UnixNano(), id)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return outbox.ErrNotFound
	}
	return nil
}

func (os *OutboxStore) MarkFailed(ctx context.Context, id int64) error {
	res, err := os.s.DB.ExecContext(ctx, `
		UPDATE outbox SET status = 'failed', attempts = attempts + 1, relayed_at = NULL
		WHERE id = ?
	`, id)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return outbox.ErrNotFound
	}
	return nil
}

func scanOutboxTx(ctx context.Context, tx *sql.Tx, id int64) (*outbox.Message, error) {
	var (
		msg         outbox.Message
		body        string
		status      string
		createdAt   int64
		processedAt sql.NullInt64
	)
	err := tx.QueryRowContext(ctx, `
		SELECT id, topic, payload, status, attempts, created_at, processed_at
		FROM outbox WHERE id = ?
	`, id).Scan(&msg.ID, &msg.Topic, &body, &status, &msg.Attempts, &createdAt, &processedAt)
	if err != nil {
		return nil, fmt.Errorf("reload message: %w", err)
	}
	if err := json.Unmarshal([]byte(body), &msg.Payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	msg.Status = outbox.Status(status)
	msg.CreatedAt = time.Unix(0, createdAt).UTC()
	if processedAt.Valid {
		t := time.Unix(0, processedAt.Int64).UTC()
		msg.ProcessedAt = &t
	}
	return &msg, nil
}
