// Package worker runs embed jobs read off the queue.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jasonherngwang/peoples-court/internal/adapters/mq/queue"
	"github.com/jasonherngwang/peoples-court/pkg/logger"
	"github.com/jasonherngwang/peoples-court/pkg/metrics"
)

const (
	defaultWorkerCount  = 4
	poolShutdownTimeout = 30 * time.Second
)

// Handler processes one job. A returned error is logged and counted; the job
// is not retried.
type Handler interface {
	Handle(ctx context.Context, j queue.Job) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, j queue.Job) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, j queue.Job) error { return f(ctx, j) }

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes jobs until its queue drains.
type Worker interface {
	// Run starts the worker loop until the queue is closed and drained or
	// ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current job.
	Shutdown(ctx context.Context) error
}

// Stats counts processed jobs.
type Stats struct {
	Processed int64
	Failed    int64
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue   Queue
	handler Handler
	name    string
	stats   *counters

	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

type counters struct {
	processed atomic.Int64
	failed    atomic.Int64
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, h Handler, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		handler:  h,
		name:     "worker",
		stats:    &counters{},
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			w.process(ctx, j)
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Stats returns the jobs this worker has handled.
func (w *InMemoryWorker) Stats() Stats {
	return Stats{Processed: w.stats.processed.Load(), Failed: w.stats.failed.Load()}
}

func (w *InMemoryWorker) process(ctx context.Context, j queue.Job) {
	start := time.Now()
	err := w.handler.Handle(ctx, j)
	metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))

	if err != nil {
		w.stats.failed.Add(1)
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "handler_error")
		w.logger.Error(ctx, "job failed",
			logger.Int("seq", j.Seq),
			logger.Int("size", j.Len()),
			logger.Error(err),
		)
		return
	}
	w.stats.processed.Add(1)
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	wg      sync.WaitGroup
	logger  logger.Logger
}

// NewPool creates a worker pool. A count below one uses the default of four.
// opts apply to every worker; each worker is then named by its slot.
func NewPool(workerCount int, q Queue, h Handler, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}
	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range pool.workers {
		slot := append(append([]Option(nil), opts...), WithName("worker-"+strconv.Itoa(i)))
		pool.workers[i] = NewInMemoryWorker(q, h, slot...)
	}
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	metrics.UpdateWorkerActiveCount(len(p.workers))
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *InMemoryWorker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Wait blocks until every worker has exited, which happens once the queue is
// closed and drained.
func (p *Pool) Wait() Stats {
	p.wg.Wait()
	metrics.UpdateWorkerActiveCount(0)
	return p.Stats()
}

// Stats sums the per-worker counters.
func (p *Pool) Stats() Stats {
	var s Stats
	for _, w := range p.workers {
		ws := w.Stats()
		s.Processed += ws.Processed
		s.Failed += ws.Failed
	}
	return s
}

// Shutdown closes the queue and stops every worker after its current job.
// Jobs still queued are abandoned.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerActiveCount(0)
	return nil
}
