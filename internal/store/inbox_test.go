package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInboxMarkIfNew(t *testing.T) {
	s := newTestStore(t)
	ib := s.Inbox()
	ctx := context.Background()

	fresh, err := ib.MarkIfNew(ctx, "evt-1")
	require.NoError(t, err)
	require.True(t, fresh)

	fresh, err = ib.MarkIfNew(ctx, "evt-1")
	require.NoError(t, err)
	require.False(t, fresh, "duplicate key must be rejected")

	fresh, err = ib.MarkIfNew(ctx, "evt-2")
	require.NoError(t, err)
	require.True(t, fresh, "distinct keys are independent")
}

func TestInboxExpiredKeyAcceptedAgain(t *testing.T) {
	s := newTestStore(t)
	s.InboxTTL = 10 * time.Millisecond
	ib := s.Inbox()
	ctx := context.Background()

	fresh, err := ib.MarkIfNew(ctx, "evt-1")
	require.NoError(t, err)
	require.True(t, fresh)

	time.Sleep(20 * time.Millisecond)

	fresh, err = ib.MarkIfNew(ctx, "evt-1")
	require.NoError(t, err)
	require.True(t, fresh, "key past its TTL should be new again")
}

func TestInboxPurgeExpired(t *testing.T) {
	s := newTestStore(t)
	s.InboxTTL = 10 * time.Millisecond
	ib := s.Inbox()
	ctx := context.Background()

	_, err := ib.MarkIfNew(ctx, "old-1")
	require.NoError(t, err)
	_, err = ib.MarkIfNew(ctx, "old-2")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	s.InboxTTL = time.Hour
	_, err = ib.MarkIfNew(ctx, "recent")
	require.NoError(t, err)

	purged, err := ib.PurgeExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, purged)

	fresh, err := ib.MarkIfNew(ctx, "recent")
	require.NoError(t, err)
	require.False(t, fresh, "recent key survives the purge")
}
