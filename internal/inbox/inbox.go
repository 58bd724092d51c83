// Package inbox provides the duplicate-suppression ledger consumers use to
// turn at-least-once delivery into exactly-once effects.
package inbox

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is how long a dedupe key stays effective.
const DefaultTTL = 24 * time.Hour

// Store is the dedupe contract. MarkIfNew is atomic: it returns true and
// records the key exactly once; later calls with the same key return false
// until the key expires.
type Store interface {
	MarkIfNew(ctx context.Context, key string) (bool, error)
	PurgeExpired(ctx context.Context) (int, error)
}

type record struct {
	firstSeenAt time.Time
	expiresAt   time.Time
}

// Memory is the in-process dedupe ledger.
type Memory struct {
	mu   sync.Mutex
	keys map[string]record
	ttl  time.Duration
	now  func() time.Time
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithTTL sets the key lifetime.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(m *Memory) { m.ttl = ttl }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory returns an empty in-process ledger.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		keys: make(map[string]record),
		ttl:  DefaultTTL,
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) MarkIfNew(_ context.Context, key string) (bool, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if rec, ok := m.keys[key]; ok && rec.expiresAt.After(now) {
		return false, nil
	}
	m.keys[key] = record{firstSeenAt: now, expiresAt: now.Add(m.ttl)}
	return true, nil
}

func (m *Memory) PurgeExpired(_ context.Context) (int, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	purged := 0
	for key, rec := range m.keys {
		if !rec.expiresAt.After(now) {
			delete(m.keys, key)
			purged++
		}
	}
	return purged, nil
}
