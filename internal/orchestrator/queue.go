// Package orchestrator runs journal entries through planning and skill
// execution, one job at a time.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is closed")
)

// Job asks the worker to process one journal entry.
type Job struct {
	ID         string    `json:"id"`
	EntryID    int64     `json:"entry_id"`
	Text       string    `json:"-"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewJob creates a job for an entry.
func NewJob(entryID int64, text string) Job {
	return Job{
		ID:         uuid.New().String(),
		EntryID:    entryID,
		Text:       text,
		EnqueuedAt: time.Now().UTC(),
	}
}

// Queue is a bounded FIFO of jobs.
type Queue struct {
	ch        chan Job
	done      chan struct{}
	closeOnce sync.Once
}

// NewQueue creates a queue holding at most capacity jobs.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 100
	}
	return &Queue{
		ch:   make(chan Job, capacity),
		done: make(chan struct{}),
	}
}

// Enqueue waits for space, ctx cancellation or Close.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}
	select {
	case q.ch <- job:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryEnqueue adds job only if there is space right now.
func (q *Queue) TryEnqueue(job Job) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}
	select {
	case q.ch <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Dequeue waits for the next job. Jobs still buffered after Close are
// abandoned.
func (q *Queue) Dequeue(ctx context.Context) (Job, error) {
	select {
	case <-ctx.Done():
		return Job{}, ctx.Err()
	case <-q.done:
		return Job{}, ErrQueueClosed
	case job := <-q.ch:
		return job, nil
	}
}

func (q *Queue) Len() int { return len(q.ch) }

func (q *Queue) Cap() int { return cap(q.ch) }

// Close rejects further enqueues and wakes blocked callers.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}
