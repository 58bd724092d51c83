package store

import (
	"context"
	"time"
)

// InboxStore is the SQLite-backed inbox.Store. The upsert in MarkIfNew is a
// single statement, so concurrent markers of the same key race safely: one
// sees true, the rest false.
type InboxStore struct {
	s *Store
}

func (is *InboxStore) MarkIfNew(ctx context.Context, key string) (bool, error) {
	now := time.Now().UTC()
	expires := now.Add(is.s.InboxTTL)

	// A conflicting row only loses to the insert when it has expired.
	res, err := is.s.DB.ExecContext(ctx, `
		INSERT INTO inbox (key, first_seen_at, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE
		SET first_seen_at = excluded.first_seen_at, expires_at = excluded.expires_at
		WHERE inbox.expires_at <= ?
	`, key, now.UnixNano(), expires.UnixNano(), now.UnixNano())
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (is *InboxStore) PurgeExpired(ctx context.Context) (int, error) {
	res, err := is.s.DB.ExecContext(ctx, `
		DELETE FROM inbox WHERE expires_at <= ?
	`, time.Now().UTC().UnixNano())
	if err != nil {
		return 0, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rows), nil
}
