package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type scriptedProcessor struct {
	mu       sync.Mutex
	seen     []int64
	inflight int
	maxSeen  int
	hold     time.Duration
	ctxErrs  []error
	fn       func(job Job) (Outcome, error)
}

func (p *scriptedProcessor) Process(ctx context.Context, job Job) (Outcome, error) {
	p.mu.Lock()
	p.inflight++
	if p.inflight > p.maxSeen {
		p.maxSeen = p.inflight
	}
	p.mu.Unlock()

	if p.hold > 0 {
		time.Sleep(p.hold)
	}

	p.mu.Lock()
	p.inflight--
	p.seen = append(p.seen, job.EntryID)
	p.ctxErrs = append(p.ctxErrs, ctx.Err())
	p.mu.Unlock()

	if p.fn != nil {
		return p.fn(job)
	}
	return OutcomeNoAction, nil
}

func (p *scriptedProcessor) snapshot() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int64(nil), p.seen...)
}

type outcomes struct {
	mu   sync.Mutex
	done []string
}

func (o *outcomes) JobDone(outcome string) {
	o.mu.Lock()
	o.done = append(o.done, outcome)
	o.mu.Unlock()
}

func (o *outcomes) SetQueueDepth(int) {}

func TestWorkerProcessesInOrderOneAtATime(t *testing.T) {
	q := NewQueue(10)
	proc := &scriptedProcessor{hold: 2 * time.Millisecond}
	obs := &outcomes{}
	w := NewWorker(q, proc, time.Millisecond, obs, zap.NewNop())

	for i := int64(1); i <= 5; i++ {
		q.TryEnqueue(NewJob(i, "entry"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	waitUntil(t, func() bool { return w.Processed() == 5 })
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want context.Canceled", err)
	}

	got := proc.snapshot()
	for i, id := range got {
		if id != int64(i+1) {
			t.Fatalf("order = %v", got)
		}
	}
	if proc.maxSeen != 1 {
		t.Errorf("max in flight = %d", proc.maxSeen)
	}
	if len(obs.done) != 5 {
		t.Errorf("observed %d outcomes", len(obs.done))
	}
}

func TestWorkerSurvivesPanicsAndErrors(t *testing.T) {
	q := NewQueue(10)
	proc := &scriptedProcessor{fn: func(job Job) (Outcome, error) {
		switch job.EntryID {
		case 1:
			panic("boom")
		case 2:
			return OutcomeError, errors.New("db down")
		}
		return OutcomeNotified, nil
	}}
	obs := &outcomes{}
	w := NewWorker(q, proc, 0, obs, zap.NewNop())
	for i := int64(1); i <= 3; i++ {
		q.TryEnqueue(NewJob(i, "entry"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	waitUntil(t, func() bool { return w.Processed() == 3 })
	obs.mu.Lock()
	defer obs.mu.Unlock()
	want := []string{"error", "error", "notified"}
	for i := range want {
		if obs.done[i] != want[i] {
			t.Fatalf("outcomes = %v, want %v", obs.done, want)
		}
	}
}

func TestWorkerDoesNotAbortInFlightJob(t *testing.T) {
	q := NewQueue(10)
	started := make(chan struct{})
	release := make(chan struct{})
	proc := &scriptedProcessor{fn: func(job Job) (Outcome, error) { return OutcomeNoAction, nil }}
	gate := processorFunc(func(ctx context.Context, job Job) (Outcome, error) {
		close(started)
		<-release
		return proc.Process(ctx, job)
	})
	w := NewWorker(q, gate, time.Hour, nil, zap.NewNop())
	q.TryEnqueue(NewJob(1, "first"))
	q.TryEnqueue(NewJob(2, "abandoned"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	<-started
	cancel()
	close(release)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
	if got := proc.snapshot(); len(got) != 1 || got[0] != 1 {
		t.Errorf("processed %v, want only the in-flight job", got)
	}
	if proc.ctxErrs[0] != nil {
		t.Errorf("in-flight job saw cancelled context: %v", proc.ctxErrs[0])
	}
	if q.Len() != 1 {
		t.Errorf("queue len = %d, want the abandoned job", q.Len())
	}
}

func TestWorkerStopsWhenQueueClosed(t *testing.T) {
	q := NewQueue(1)
	w := NewWorker(q, &scriptedProcessor{}, 0, nil, zap.NewNop())
	q.Close()
	if err := w.Run(context.Background()); err != nil {
		t.Errorf("Run = %v", err)
	}
}

type processorFunc func(ctx context.Context, job Job) (Outcome, error)

func (f processorFunc) Process(ctx context.Context, job Job) (Outcome, error) { return f(ctx, job) }

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met")
}
