package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aliikhatami94/workbox/internal/webhook"
)

func TestSubscriptionsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ss := s.Subscriptions()
	ctx := context.Background()

	sub := webhook.NewSubscription("orders", "https://a.example/hook", "new-secret", "old-secret")
	require.NoError(t, ss.Add(ctx, sub))
	require.NoError(t, ss.Add(ctx, webhook.NewSubscription("payments", "https://b.example/hook", "s")))

	subs, err := ss.ForTopic(ctx, "orders")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Equal(t, sub.ID, subs[0].ID)
	require.Equal(t, sub.URL, subs[0].URL)
	require.Equal(t, []string{"new-secret", "old-secret"}, subs[0].Secrets)
}

func TestSubscriptionsUnknownTopicIsEmpty(t *testing.T) {
	s := newTestStore(t)

	subs, err := s.Subscriptions().ForTopic(context.Background(), "nope")
	require.NoError(t, err)
	require.Empty(t, subs)
}

func TestConfigDefaultsAndOverrides(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.Equal(t, 5, s.ConfigInt(ctx, "max_attempts", 0))
	require.Equal(t, 60, s.ConfigInt(ctx, "backoff_seconds", 0))

	require.NoError(t, s.SetConfig(ctx, "max_attempts", "8"))
	require.Equal(t, 8, s.ConfigInt(ctx, "max_attempts", 0))

	val, err := s.GetConfig(ctx, "missing-key")
	require.NoError(t, err)
	require.Equal(t, "", val)

	require.Equal(t, 7, s.ConfigInt(ctx, "missing-key", 7))

	all, err := s.AllConfig(ctx)
	require.NoError(t, err)
	require.Equal(t, "8", all["max_attempts"])
}
