package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Aliikhatami94/workbox/internal/job"
	"github.com/Aliikhatami94/workbox/internal/queue"
)

// recordingQueue wraps a queue and records ack/fail outcomes so tests can
// assert on what the runner decided.
type recordingQueue struct {
	queue.Queue

	mu     sync.Mutex
	acked  []string
	failed []string
}

func (q *recordingQueue) Ack(ctx context.Context, id string) error {
	q.mu.Lock()
	q.acked = append(q.acked, id)
	q.mu.Unlock()
	return q.Queue.Ack(ctx, id)
}

func (q *recordingQueue) Fail(ctx context.Context, id string, jobErr error) error {
	q.mu.Lock()
	q.failed = append(q.failed, id)
	q.mu.Unlock()
	return q.Queue.Fail(ctx, id, jobErr)
}

func (q *recordingQueue) counts() (acks, fails int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.acked), len(q.failed)
}

func TestProcessOneAcksOnSuccess(t *testing.T) {
	q := &recordingQueue{Queue: queue.NewMemory()}
	if _, err := q.Enqueue(context.Background(), "email.send", job.Payload{"to": "a@b.c"}); err != nil {
		t.Fatal(err)
	}

	var got *job.Job
	r := NewRunner(q, func(ctx context.Context, j *job.Job) error {
		got = j
		return nil
	})

	processed, err := r.ProcessOne(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !processed {
		t.Fatal("expected a job to be processed")
	}
	if got == nil || got.Name != "email.send" {
		t.Fatalf("handler saw job %+v", got)
	}
	acks, fails := q.counts()
	if acks != 1 || fails != 0 {
		t.Fatalf("acks=%d fails=%d, want 1/0", acks, fails)
	}
}

func TestProcessOneFailsOnHandlerError(t *testing.T) {
	q := &recordingQueue{Queue: queue.NewMemory()}
	if _, err := q.Enqueue(context.Background(), "email.send", nil); err != nil {
		t.Fatal(err)
	}

	r := NewRunner(q, func(ctx context.Context, j *job.Job) error {
		return errors.New("smtp unreachable")
	})

	if _, err := r.ProcessOne(context.Background()); err != nil {
		t.Fatal(err)
	}
	acks, fails := q.counts()
	if acks != 0 || fails != 1 {
		t.Fatalf("acks=%d fails=%d, want 0/1", acks, fails)
	}
}

func TestProcessOneEmptyQueue(t *testing.T) {
	r := NewRunner(queue.NewMemory(), func(ctx context.Context, j *job.Job) error {
		t.Fatal("handler should not run")
		return nil
	})

	processed, err := r.ProcessOne(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if processed {
		t.Fatal("expected no job")
	}
}

func TestHandlerTimeoutFailsJob(t *testing.T) {
	q := &recordingQueue{Queue: queue.NewMemory()}
	if _, err := q.Enqueue(context.Background(), "slow.task", nil); err != nil {
		t.Fatal(err)
	}

	r := NewRunner(q, func(ctx context.Context, j *job.Job) error {
		<-ctx.Done()
		return ctx.Err()
	}, WithJobTimeout(20*time.Millisecond))

	if _, err := r.ProcessOne(context.Background()); err != nil {
		t.Fatal(err)
	}
	acks, fails := q.counts()
	if acks != 0 || fails != 1 {
		t.Fatalf("acks=%d fails=%d, want 0/1", acks, fails)
	}
}

func TestGracefulStopWaitsForInflight(t *testing.T) {
	q := &recordingQueue{Queue: queue.NewMemory()}
	if _, err := q.Enqueue(context.Background(), "slow.task", nil); err != nil {
		t.Fatal(err)
	}

	started := make(chan struct{})
	release := make(chan struct{})
	r := NewRunner(q, func(ctx context.Context, j *job.Job) error {
		close(started)
		<-release
		return nil
	}, WithPollInterval(5*time.Millisecond))

	r.Start()
	<-started

	go func() {
		time.Sleep(30 * time.Millisecond)
		close(release)
	}()

	if !r.Stop(2 * time.Second) {
		t.Fatal("Stop should have returned within grace")
	}
	acks, _ := q.counts()
	if acks != 1 {
		t.Fatalf("in-flight job should have been acked, acks=%d", acks)
	}
}

func TestStopReturnsAfterGraceExpires(t *testing.T) {
	q := &recordingQueue{Queue: queue.NewMemory()}
	if _, err := q.Enqueue(context.Background(), "slow.task", nil); err != nil {
		t.Fatal(err)
	}

	started := make(chan struct{})
	release := make(chan struct{})
	r := NewRunner(q, func(ctx context.Context, j *job.Job) error {
		close(started)
		<-release
		return nil
	}, WithPollInterval(5*time.Millisecond))

	r.Start()
	<-started

	begin := time.Now()
	if r.Stop(20 * time.Millisecond) {
		t.Fatal("Stop should have given up on the stuck handler")
	}
	if elapsed := time.Since(begin); elapsed > time.Second {
		t.Fatalf("Stop hung for %s", elapsed)
	}
	close(release)
}

func TestStopWithoutStartIsNoop(t *testing.T) {
	r := NewRunner(queue.NewMemory(), func(ctx context.Context, j *job.Job) error { return nil })
	if !r.Stop(time.Millisecond) {
		t.Fatal("stopping an idle runner should succeed")
	}
}

func TestRunNProcessesUpToN(t *testing.T) {
	q := &recordingQueue{Queue: queue.NewMemory()}
	for i := 0; i < 3; i++ {
		if _, err := q.Enqueue(context.Background(), "task", nil); err != nil {
			t.Fatal(err)
		}
	}

	var mu sync.Mutex
	var ran int
	r := NewRunner(q, func(ctx context.Context, j *job.Job) error {
		mu.Lock()
		ran++
		mu.Unlock()
		return nil
	}, WithPollInterval(time.Millisecond))

	if err := r.RunN(context.Background(), 3); err != nil {
		t.Fatal(err)
	}
	mu.Lock()
	defer mu.Unlock()
	if ran != 3 {
		t.Fatalf("ran %d jobs, want 3", ran)
	}
}
