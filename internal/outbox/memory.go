package outbox

import (
	"context"
	"sync"
	"time"
)

const defaultRelayWindow = time.Minute

type memoryMessage struct {
	Message
	relayedAt time.Time
}

// Memory is the in-process outbox store.
type Memory struct {
	mu          sync.Mutex
	messages    []*memoryMessage
	nextID      int64
	relayWindow time.Duration
	now         func() time.Time
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithRelayWindow sets how long a fetched message stays invisible.
func WithRelayWindow(d time.Duration) MemoryOption {
	return func(m *Memory) { m.relayWindow = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory returns an empty in-process outbox.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		nextID:      1,
		relayWindow: defaultRelayWindow,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Enqueue(_ context.Context, topic string, payload map[string]any) (*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg := &memoryMessage{Message: Message{
		ID:        m.nextID,
		Topic:     topic,
		Payload:   payload,
		Status:    StatusPending,
		CreatedAt: m.now(),
	}}
	m.nextID++
	m.messages = append(m.messages, msg)

	cp := msg.Message
	return &cp, nil
}

func (m *Memory) FetchNext(_ context.Context, topics ...string) (*Message, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, msg := range m.messages {
		if msg.Status == StatusProcessed {
			continue
		}
		if !topicMatch(msg.Topic, topics) {
			continue
		}
		if !msg.relayedAt.IsZero() && now.Before(msg.relayedAt.Add(m.relayWindow)) {
			continue
		}
		msg.relayedAt = now
		cp := msg.Message
		return &cp, nil
	}
	return nil, nil
}

func (m *Memory) Get(_ context.Context, id int64) (*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if msg := m.find(id); msg != nil {
		cp := msg.Message
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (m *Memory) MarkProcessed(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg := m.find(id)
	if msg == nil {
		return ErrNotFound
	}
	now := m.now()
	msg.Status = StatusProcessed
	msg.ProcessedAt = &now
	return nil
}

func (m *Memory) MarkFailed(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg := m.find(id)
	if msg == nil {
		return ErrNotFound
	}
	msg.Status = StatusFailed
	msg.Attempts++
	msg.relayedAt = time.Time{}
	return nil
}

func (m *Memory) find(id int64) *memoryMessage {
	for _, msg := range m.messages {
		if msg.ID == id {
			return msg
		}
	}
	return nil
}
