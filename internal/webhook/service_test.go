package webhook

import (
	"context"
	"testing"

	"github.com/Aliikhatami94/workbox/internal/outbox"
)

func TestPublishFansOutPerSubscription(t *testing.T) {
	ob := outbox.NewMemory()
	reg := NewMemoryRegistry()
	ctx := context.Background()

	reg.Add(ctx, NewSubscription("orders", "https://a.example/hook", "s1"))
	reg.Add(ctx, NewSubscription("orders", "https://b.example/hook", "s2"))
	reg.Add(ctx, NewSubscription("payments", "https://c.example/hook", "s3"))

	svc := NewService(ob, reg)
	ids, err := svc.Publish(ctx, "orders", map[string]any{"order_id": "o-1"}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Fatalf("published %d messages, want one per orders subscription", len(ids))
	}
}

func TestPublishWithoutSubscribersCreatesNothing(t *testing.T) {
	ob := outbox.NewMemory()
	svc := NewService(ob, NewMemoryRegistry())
	ctx := context.Background()

	ids, err := svc.Publish(ctx, "orders", map[string]any{}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Fatalf("got %d messages, want 0", len(ids))
	}
	if msg, _ := ob.FetchNext(ctx); msg != nil {
		t.Fatal("outbox should stay empty")
	}
}

func TestPublishStoresEventAndSubscriptionEnvelope(t *testing.T) {
	ob := outbox.NewMemory()
	reg := NewMemoryRegistry()
	ctx := context.Background()

	sub := NewSubscription("orders", "https://a.example/hook", "s1", "s0")
	reg.Add(ctx, sub)

	svc := NewService(ob, reg)
	ids, err := svc.Publish(ctx, "orders", map[string]any{"order_id": "o-1"}, 2)
	if err != nil {
		t.Fatal(err)
	}

	msg, err := ob.Get(ctx, ids[0])
	if err != nil {
		t.Fatal(err)
	}
	if msg.Topic != "orders" {
		t.Fatalf("topic = %q", msg.Topic)
	}

	event, got, err := splitEnvelope(msg.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if event["topic"] != "orders" {
		t.Fatalf("event topic = %v", event["topic"])
	}
	if event["version"] != 2 {
		t.Fatalf("event version = %v", event["version"])
	}
	if event["created_at"] == nil {
		t.Fatal("event should carry created_at")
	}
	if got.ID != sub.ID || got.URL != sub.URL {
		t.Fatalf("subscription envelope = %+v, want %+v", got, sub)
	}
	if len(got.Secrets) != 2 || got.Secrets[0] != "s1" {
		t.Fatalf("secrets = %v, want signing secret first", got.Secrets)
	}
}
