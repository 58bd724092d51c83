package outbox

import (
	"context"
	"errors"
	"time"
)

// Status is the lifecycle state of an outbox message.
type Status string

const (
	// StatusPending marks a message awaiting relay.
	StatusPending Status = "pending"
	// StatusProcessed marks a message whose downstream work succeeded.
	StatusProcessed Status = "processed"
	// StatusFailed marks a message whose last relay attempt failed; it
	// remains fetchable for retry.
	StatusFailed Status = "failed"
)

// ErrNotFound is returned by Get for an unknown message id.
var ErrNotFound = errors.New("outbox: message not found")

// Message is an append-only relay record, created in the same logical unit
// of work as the business event it represents.
type Message struct {
	ID          int64
	Topic       string
	Payload     map[string]any
	Status      Status
	Attempts    int
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// Store is the relay buffer contract. FetchNext hands out the oldest
// non-processed message; a fetched message stays invisible for the store's
// relay window so one tick relays each message once, but an unprocessed
// message resurfaces after the window (at-least-once, deduped downstream).
type Store interface {
	Enqueue(ctx context.Context, topic string, payload map[string]any) (*Message, error)
	FetchNext(ctx context.Context, topics ...string) (*Message, error)
	Get(ctx context.Context, id int64) (*Message, error)
	MarkProcessed(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64) error
}

func topicMatch(topic string, topics []string) bool {
	if len(topics) == 0 {
		return true
	}
	for _, t := range topics {
		if t == topic {
			return true
		}
	}
	return false
}
