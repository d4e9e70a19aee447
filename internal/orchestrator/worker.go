package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Processor handles one dequeued job.
type Processor interface {
	Process(ctx context.Context, job Job) (Outcome, error)
}

// JobObserver receives worker counters. *observability.Metrics satisfies it.
type JobObserver interface {
	JobDone(outcome string)
	SetQueueDepth(n int)
}

// Worker drains the queue with exactly one job in flight.
type Worker struct {
	queue     *Queue
	processor Processor
	delay     time.Duration
	observer  JobObserver
	processed atomic.Int64
	busy      atomic.Bool
	logger    *zap.Logger
}

// NewWorker creates the worker. delay is the pause after every job that
// keeps calls to the reasoning and automation services spaced out.
func NewWorker(queue *Queue, processor Processor, delay time.Duration, observer JobObserver, logger *zap.Logger) *Worker {
	if delay < 0 {
		delay = 0
	}
	return &Worker{
		queue:     queue,
		processor: processor,
		delay:     delay,
		observer:  observer,
		logger:    logger,
	}
}

// Run processes jobs until ctx is cancelled or the queue is closed.
// Cancellation is only observed between jobs; a job already started runs
// to completion on a context detached from ctx.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started", zap.Int("capacity", w.queue.Cap()), zap.Duration("delay", w.delay))
	for {
		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			w.logger.Info("worker stopped", zap.Int("abandoned", w.queue.Len()), zap.Error(err))
			if errors.Is(err, ErrQueueClosed) {
				return nil
			}
			return err
		}
		w.observeDepth()

		w.runJob(context.WithoutCancel(ctx), job)

		if w.delay > 0 {
			t := time.NewTimer(w.delay)
			select {
			case <-ctx.Done():
				t.Stop()
				w.logger.Info("worker stopped", zap.Int("abandoned", w.queue.Len()))
				return ctx.Err()
			case <-t.C:
			}
		}
	}
}

func (w *Worker) runJob(ctx context.Context, job Job) {
	log := w.logger.With(zap.String("job", job.ID), zap.Int64("entry", job.EntryID))
	start := time.Now()
	w.busy.Store(true)

	outcome, err := w.safeProcess(ctx, job)
	if err != nil {
		log.Error("job failed", zap.String("outcome", string(outcome)), zap.Error(err))
	} else {
		log.Info("job done", zap.String("outcome", string(outcome)), zap.Duration("elapsed", time.Since(start)))
	}

	w.busy.Store(false)
	w.processed.Add(1)
	if w.observer != nil {
		w.observer.JobDone(string(outcome))
	}
}

func (w *Worker) safeProcess(ctx context.Context, job Job) (outcome Outcome, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			outcome = OutcomeError
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return w.processor.Process(ctx, job)
}

func (w *Worker) observeDepth() {
	if w.observer != nil {
		w.observer.SetQueueDepth(w.queue.Len())
	}
}

// Processed returns how many jobs have finished, successfully or not.
func (w *Worker) Processed() int64 { return w.processed.Load() }

// Busy reports whether a job is in flight.
func (w *Worker) Busy() bool { return w.busy.Load() }
