package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Aliikhatami94/workbox/internal/webhook"
)

// SubscriptionStore is the SQLite-backed webhook.SubscriptionStore.
type SubscriptionStore struct {
	s *Store
}

func (ss *SubscriptionStore) Add(ctx context.Context, sub webhook.Subscription) error {
	secrets, err := json.Marshal(sub.Secrets)
	if err != nil {
		return fmt.Errorf("encode secrets: %w", err)
	}
	_, err = ss.s.DB.ExecContext(ctx, `
		INSERT INTO subscriptions (id, topic, url, secrets)
		VALUES (?, ?, ?, ?)
	`, sub.ID, sub.Topic, sub.URL, string(secrets))
	if err != nil {
		return fmt.Errorf("add subscription: %w", err)
	}
	return nil
}

func (ss *SubscriptionStore) ForTopic(ctx context.Context, topic string) ([]webhook.Subscription, error) {
	rows, err := ss.s.DB.QueryContext(ctx, `
		SELECT id, topic, url, secrets FROM subscriptions WHERE topic = ?
	`, topic)
	if err != nil {
		return nil, err
	}
	return scanSubscriptions(rows)
}

// List returns every registered subscription, ordered by topic.
func (ss *SubscriptionStore) List(ctx context.Context) ([]webhook.Subscription, error) {
	rows, err := ss.s.DB.QueryContext(ctx, `
		SELECT id, topic, url, secrets FROM subscriptions ORDER BY topic, id
	`)
	if err != nil {
		return nil, err
	}
	return scanSubscriptions(rows)
}

func scanSubscriptions(rows *sql.Rows) ([]webhook.Subscription, error) {
	defer rows.Close()

	var subs []webhook.Subscription
	for rows.Next() {
		var (
			sub     webhook.Subscription
			secrets string
		)
		if err := rows.Scan(&sub.ID, &sub.Topic, &sub.URL, &secrets); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(secrets), &sub.Secrets); err != nil {
			return nil, fmt.Errorf("decode secrets: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}
