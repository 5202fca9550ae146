// Package executor runs workflows in the background: a dispatcher hands
// accepted workflow ids to a worker pool, and the engine walks each
// workflow's task list strictly in order.
package executor

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueFull is returned by Submit when the dispatch queue is
// saturated. The workflow stays pending; it is never silently dropped
// after a successful Submit.
var ErrQueueFull = errors.New("dispatch queue is full")

// Runner executes one workflow attempt. The dispatcher is agnostic to
// what delivery guarantees the runner provides beyond that one attempt.
type Runner interface {
	ExecuteWorkflow(ctx context.Context, id string)
}

// Logger defines the logging interface compatible with the application
// logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Dispatcher hands workflow ids to a bounded worker pool. Submit is
// non-blocking: the originating request returns "accepted" without
// waiting for execution.
type Dispatcher struct {
	runner  Runner
	queue   chan string
	workers int
	logger  Logger
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with the given pool size and queue
// capacity.
func NewDispatcher(runner Runner, workers, queueSize int, logger Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Dispatcher{
		runner:  runner,
		queue:   make(chan string, queueSize),
		workers: workers,
		logger:  logger,
	}
}

// Start launches the worker pool. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work(ctx)
	}
	d.logger.Info("dispatcher started", "workers", d.workers, "queue_size", cap(d.queue))
}

// Submit enqueues a workflow id for asynchronous execution.
func (d *Dispatcher) Submit(id string) error {
	select {
	case d.queue <- id:
		return nil
	default:
		return ErrQueueFull
	}
}

// Wait blocks until all workers have exited.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) work(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-d.queue:
			d.runner.ExecuteWorkflow(ctx, id)
		}
	}
}
