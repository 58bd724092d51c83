package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Aliikhatami94/workbox/internal/job"
)

func newClock(start time.Time) (func() time.Time, func(time.Duration)) {
	now := start
	return func() time.Time { return now }, func(d time.Duration) { now = now.Add(d) }
}

func TestEnqueueAndReserve(t *testing.T) {
	ctx := context.Background()
	q := NewMemory()

	j, err := q.Enqueue(ctx, "say-hello", job.Payload{"name": "alice"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if j.Attempts != 0 {
		t.Errorf("expected attempts 0, got %d", j.Attempts)
	}

	got, err := q.ReserveNext(ctx, time.Minute)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if got == nil || got.ID != j.ID {
		t.Fatalf("expected job %s, got %+v", j.ID, got)
	}
	if got.Attempts != 1 {
		t.Errorf("expected attempts 1 after reserve, got %d", got.Attempts)
	}

	// Leased job must be invisible to a second reserver.
	again, err := q.ReserveNext(ctx, time.Minute)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if again != nil {
		t.Errorf("expected nil while lease is held, got %+v", again)
	}
}

func TestDelayedEnqueueNotImmediatelyReservable(t *testing.T) {
	ctx := context.Background()
	clock, advance := newClock(time.Now().UTC())
	q := NewMemory(WithClock(clock))

	if _, err := q.Enqueue(ctx, "delayed", job.Payload{}, WithDelay(time.Second)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	got, _ := q.ReserveNext(ctx, time.Minute)
	if got != nil {
		t.Fatalf("expected nil before delay elapses, got %+v", got)
	}

	advance(2 * time.Second)
	got, _ = q.ReserveNext(ctx, time.Minute)
	if got == nil {
		t.Fatal("expected job after delay elapsed")
	}
}

func TestLeaseExpiryEnablesReReservation(t *testing.T) {
	ctx := context.Background()
	clock, advance := newClock(time.Now().UTC())
	q := NewMemory(WithClock(clock))

	j, _ := q.Enqueue(ctx, "crashy", job.Payload{})

	first, _ := q.ReserveNext(ctx, 30*time.Second)
	if first == nil {
		t.Fatal("expected first reservation")
	}

	// Worker "crashes": no ack, no fail. Lease still valid -> invisible.
	advance(10 * time.Second)
	if got, _ := q.ReserveNext(ctx, 30*time.Second); got != nil {
		t.Fatalf("expected nil while lease valid, got %+v", got)
	}

	// Lease expired -> reservable again with attempts incremented.
	advance(30 * time.Second)
	second, _ := q.ReserveNext(ctx, 30*time.Second)
	if second == nil {
		t.Fatal("expected re-reservation after lease expiry")
	}
	if second.ID != j.ID || second.Attempts != 2 {
		t.Errorf("expected job %s with attempts 2, got %s attempts %d", j.ID, second.ID, second.Attempts)
	}
}

func TestFailSchedulesExponentialBackoff(t *testing.T) {
	ctx := context.Background()
	start := time.Now().UTC()
	clock, advance := newClock(start)
	q := NewMemory(WithClock(clock))

	j, _ := q.Enqueue(ctx, "task", job.Payload{}, WithBackoff(2*time.Second), WithMaxAttempts(5))

	for _, wantDelay := range []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second} {
		got, _ := q.ReserveNext(ctx, time.Minute)
		if got == nil {
			t.Fatal("expected reservable job")
		}
		if err := q.Fail(ctx, got.ID, errors.New("boom")); err != nil {
			t.Fatalf("fail: %v", err)
		}

		// Not reservable until the backoff elapses.
		if again, _ := q.ReserveNext(ctx, time.Minute); again != nil {
			t.Fatalf("expected nil during backoff, got %+v", again)
		}
		advance(wantDelay - time.Second)
		if again, _ := q.ReserveNext(ctx, time.Minute); again != nil {
			t.Fatal("job became reservable before backoff elapsed")
		}
		advance(time.Second)
	}

	got, _ := q.ReserveNext(ctx, time.Minute)
	if got == nil || got.ID != j.ID {
		t.Fatal("expected job back after final backoff")
	}
	if got.LastError != "boom" {
		t.Errorf("expected last error recorded, got %q", got.LastError)
	}
}

func TestBackoffCap(t *testing.T) {
	base := 2 * time.Second
	if d := Backoff(base, 3, time.Hour); d != 8*time.Second {
		t.Errorf("expected 8s, got %v", d)
	}
	if d := Backoff(base, 10, 10*time.Second); d != 10*time.Second {
		t.Errorf("expected cap 10s, got %v", d)
	}
	if d := Backoff(base, 64, time.Hour); d != time.Hour {
		t.Errorf("expected cap on large attempt count, got %v", d)
	}
}

func TestMaxAttemptsMovesToDeadLetters(t *testing.T) {
	ctx := context.Background()
	q := NewMemory()

	j, _ := q.Enqueue(ctx, "demo", job.Payload{}, WithMaxAttempts(1))

	got, _ := q.ReserveNext(ctx, time.Minute)
	if got == nil {
		t.Fatal("expected reservation")
	}
	if err := q.Fail(ctx, got.ID, errors.New("permanent")); err != nil {
		t.Fatalf("fail: %v", err)
	}

	if again, _ := q.ReserveNext(ctx, time.Minute); again != nil {
		t.Fatalf("dead job must not be reservable, got %+v", again)
	}

	dead, err := q.DeadLetters(ctx)
	if err != nil {
		t.Fatalf("dead letters: %v", err)
	}
	if len(dead) != 1 || dead[0].ID != j.ID {
		t.Fatalf("expected exactly one dead letter for %s, got %+v", j.ID, dead)
	}
	if dead[0].LastError != "permanent" {
		t.Errorf("expected last error preserved, got %q", dead[0].LastError)
	}
}

func TestAckIsIdempotent(t *testing.T) {
	ctx := context.Background()
	q := NewMemory()

	j, _ := q.Enqueue(ctx, "once", job.Payload{})
	got, _ := q.ReserveNext(ctx, time.Minute)
	if got == nil {
		t.Fatal("expected reservation")
	}

	if err := q.Ack(ctx, j.ID); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if err := q.Ack(ctx, j.ID); err != nil {
		t.Fatalf("second ack: %v", err)
	}
	if err := q.Ack(ctx, "missing"); err != nil {
		t.Fatalf("ack missing id: %v", err)
	}

	if again, _ := q.ReserveNext(ctx, time.Minute); again != nil {
		t.Fatalf("acked job must never come back, got %+v", again)
	}
}

func TestReserveReturnsOldestReadyFirst(t *testing.T) {
	ctx := context.Background()
	clock, advance := newClock(time.Now().UTC())
	q := NewMemory(WithClock(clock))

	first, _ := q.Enqueue(ctx, "first", job.Payload{})
	advance(time.Millisecond)
	second, _ := q.Enqueue(ctx, "second", job.Payload{})

	got, _ := q.ReserveNext(ctx, time.Minute)
	if got == nil || got.ID != first.ID {
		t.Fatalf("expected oldest job %s first, got %+v", first.ID, got)
	}
	_ = q.Ack(ctx, got.ID)

	got, _ = q.ReserveNext(ctx, time.Minute)
	if got == nil || got.ID != second.ID {
		t.Fatalf("expected %s second, got %+v", second.ID, got)
	}
}

func TestExpiredLeaseBeyondMaxAttemptsDeadLetters(t *testing.T) {
	ctx := context.Background()
	clock, advance := newClock(time.Now().UTC())
	q := NewMemory(WithClock(clock))

	j, _ := q.Enqueue(ctx, "stuck", job.Payload{}, WithMaxAttempts(1))

	if got, _ := q.ReserveNext(ctx, time.Second); got == nil {
		t.Fatal("expected reservation")
	}
	// Lease expires without ack or fail; the next reserve would exceed the
	// attempt bound, so the job dead-letters instead of being returned.
	advance(2 * time.Second)
	if got, _ := q.ReserveNext(ctx, time.Second); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}

	dead, _ := q.DeadLetters(ctx)
	if len(dead) != 1 || dead[0].ID != j.ID {
		t.Fatalf("expected dead letter for %s, got %+v", j.ID, dead)
	}
}
