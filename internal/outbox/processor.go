package outbox

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Aliikhatami94/workbox/internal/job"
	"github.com/Aliikhatami94/workbox/internal/queue"
)

// JobNamePrefix prefixes the topic in the job name of every relayed message,
// so workers can route outbox jobs by name.
const JobNamePrefix = "outbox."

// PayloadKey is the job payload field carrying the outbox message id.
const PayloadKey = "outbox_id"

// Tick relays at most one pending outbox message per invocation.
type Tick func(ctx context.Context) error

// NewTick binds an outbox store to a job queue. Each tick fetches the next
// pending message (optionally topic-filtered) and enqueues a job named
// "outbox.<topic>" carrying the message id. The message is never marked
// processed here — only the job's own success handler does that, so a crash
// between enqueue and mark causes a re-relay rather than a lost message.
func NewTick(store Store, q queue.Queue, logger *slog.Logger, topics ...string) Tick {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context) error {
		msg, err := store.FetchNext(ctx, topics...)
		if err != nil {
			return fmt.Errorf("outbox fetch: %w", err)
		}
		if msg == nil {
			return nil
		}

		j, err := q.Enqueue(ctx, JobNamePrefix+msg.Topic, job.Payload{PayloadKey: msg.ID})
		if err != nil {
			return fmt.Errorf("outbox relay enqueue: %w", err)
		}

		logger.Debug("outbox message relayed",
			"outbox_id", msg.ID,
			"topic", msg.Topic,
			"job_id", j.ID,
		)
		return nil
	}
}
