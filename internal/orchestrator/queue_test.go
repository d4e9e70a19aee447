package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(3)
	ctx := context.Background()
	for i := int64(1); i <= 3; i++ {
		if err := q.Enqueue(ctx, NewJob(i, "entry")); err != nil {
			t.Fatalf("Enqueue %d: %v", i, err)
		}
	}
	if q.Len() != 3 || q.Cap() != 3 {
		t.Fatalf("len=%d cap=%d", q.Len(), q.Cap())
	}
	if err := q.TryEnqueue(NewJob(4, "x")); !errors.Is(err, ErrQueueFull) {
		t.Errorf("TryEnqueue on full queue: %v", err)
	}
	for want := int64(1); want <= 3; want++ {
		job, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Dequeue: %v", err)
		}
		if job.EntryID != want {
			t.Errorf("dequeued entry %d, want %d", job.EntryID, want)
		}
		if job.ID == "" {
			t.Error("job has no id")
		}
	}
}

func TestQueueEnqueueBlocksUntilContextDone(t *testing.T) {
	q := NewQueue(1)
	q.TryEnqueue(NewJob(1, "a"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Enqueue(ctx, NewJob(2, "b")); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Enqueue = %v, want deadline exceeded", err)
	}
}

func TestQueueClose(t *testing.T) {
	q := NewQueue(1)
	q.TryEnqueue(NewJob(1, "a"))

	blocked := make(chan error, 1)
	go func() { blocked <- q.Enqueue(context.Background(), NewJob(2, "b")) }()

	time.Sleep(10 * time.Millisecond)
	q.Close()
	q.Close()

	select {
	case err := <-blocked:
		if !errors.Is(err, ErrQueueClosed) {
			t.Errorf("blocked Enqueue = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not wake blocked Enqueue")
	}
	if err := q.TryEnqueue(NewJob(3, "c")); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("TryEnqueue after Close = %v", err)
	}
	if _, err := q.Dequeue(context.Background()); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Dequeue after Close = %v", err)
	}
}
