package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Runner executes one dispatched job to its terminal state.
// review.Executor is the production implementation.
type Runner interface {
	Execute(ctx context.Context, jobID, language, code string)
}

// FailureRecorder marks a job failed when its worker panics.
type FailureRecorder interface {
	FailReview(ctx context.Context, id string, errMsg string, failedAt time.Time) error
}

type task struct {
	jobID    string
	language string
	code     string
}

// Dispatcher decouples job creation from execution: Enqueue is called only
// after the pending record is durable, and a fixed pool of workers drains
// the queue independently of the request/response cycle.
type Dispatcher struct {
	runner  Runner
	store   FailureRecorder
	tasks   chan task
	group   *errgroup.Group
	mu      sync.RWMutex
	closed  bool
	started bool
}

// NewDispatcher creates a dispatcher with the given queue capacity.
func NewDispatcher(runner Runner, store FailureRecorder, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Dispatcher{
		runner: runner,
		store:  store,
		tasks:  make(chan task, queueSize),
	}
}

// Start launches the worker pool. Workers run jobs under a detached context:
// once dispatched, a job runs to completion, failure, or retry exhaustion -
// it is never cancelled from the outside.
func (d *Dispatcher) Start(workers int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true

	if workers <= 0 {
		workers = 4
	}

	d.group = &errgroup.Group{}
	for i := 0; i < workers; i++ {
		workerID := i
		d.group.Go(func() error {
			for t := range d.tasks {
				d.run(workerID, t)
			}
			return nil
		})
	}
	slog.Info("dispatcher started", "workers", workers, "queue_size", cap(d.tasks))
}

// run executes one task with panic recovery; a panicking job is marked
// failed so it doesn't stay pending forever.
func (d *Dispatcher) run(workerID int, t task) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("review worker panicked", "worker", workerID, "job_id", t.jobID, "panic", r)
			if d.store != nil {
				err := d.store.FailReview(context.Background(), t.jobID, fmt.Sprintf("internal panic: %v", r), time.Now())
				if err != nil {
					slog.Warn("failed to persist panic failure", "job_id", t.jobID, "error", err)
				}
			}
		}
	}()

	slog.Debug("worker picked up job", "worker", workerID, "job_id", t.jobID)
	d.runner.Execute(context.Background(), t.jobID, t.language, t.code)
}

// Enqueue hands a persisted pending job to the workers. Blocks when the
// queue is full; returns an error after Close.
func (d *Dispatcher) Enqueue(jobID, language, code string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return errors.New("dispatcher closed")
	}
	d.tasks <- task{jobID: jobID, language: language, code: code}
	return nil
}

// Close stops accepting work and waits for in-flight and queued jobs to
// finish.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.tasks)
	started := d.started
	d.mu.Unlock()

	if !started {
		return nil
	}
	err := d.group.Wait()
	slog.Info("dispatcher drained")
	return err
}
