package webhook

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Aliikhatami94/workbox/internal/outbox"
)

// Subscription registers a receiver endpoint for one topic. Secrets is
// ordered: the first entry signs outgoing deliveries, later entries exist so
// receivers can verify during a rotation.
type Subscription struct {
	ID      string
	Topic   string
	URL     string
	Secrets []string
}

// NewSubscription builds a subscription with a fresh id.
func NewSubscription(topic, url string, secrets ...string) Subscription {
	return Subscription{
		ID:      uuid.NewString(),
		Topic:   topic,
		URL:     url,
		Secrets: secrets,
	}
}

// SubscriptionStore is the registry consulted at publish time.
type SubscriptionStore interface {
	Add(ctx context.Context, sub Subscription) error
	ForTopic(ctx context.Context, topic string) ([]Subscription, error)
}

// MemoryRegistry is the in-process subscription registry.
type MemoryRegistry struct {
	mu   sync.RWMutex
	subs map[string][]Subscription
}

// NewMemoryRegistry returns an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{subs: make(map[string][]Subscription)}
}

func (r *MemoryRegistry) Add(_ context.Context, sub Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[sub.Topic] = append(r.subs[sub.Topic], sub)
	return nil
}

func (r *MemoryRegistry) ForTopic(_ context.Context, topic string) ([]Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Subscription, len(r.subs[topic]))
	copy(out, r.subs[topic])
	return out, nil
}

// Service fans published events out to subscribers through the outbox. Each
// subscriber gets an independent outbox message and therefore an independent
// retry stream: one slow or broken receiver never blocks another's delivery.
type Service struct {
	outbox outbox.Store
	subs   SubscriptionStore
	now    func() time.Time
}

// NewService binds an outbox store to a subscription registry.
func NewService(ob outbox.Store, subs SubscriptionStore) *Service {
	return &Service{
		outbox: ob,
		subs:   subs,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Publish enqueues one outbox message per subscription on topic. It returns
// the ids of the created messages; an empty slice means no subscribers.
func (s *Service) Publish(ctx context.Context, topic string, payload map[string]any, version int) ([]int64, error) {
	subs, err := s.subs.ForTopic(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}

	event := map[string]any{
		"topic":      topic,
		"payload":    payload,
		"version":    version,
		"created_at": s.now().Format(time.RFC3339Nano),
	}

	ids := make([]int64, 0, len(subs))
	for _, sub := range subs {
		msg, err := s.outbox.Enqueue(ctx, topic, map[string]any{
			"event": event,
			"subscription": map[string]any{
				"id":      sub.ID,
				"topic":   sub.Topic,
				"url":     sub.URL,
				"secrets": sub.Secrets,
			},
		})
		if err != nil {
			return ids, fmt.Errorf("enqueue outbox message for %s: %w", sub.URL, err)
		}
		ids = append(ids, msg.ID)
	}
	return ids, nil
}
