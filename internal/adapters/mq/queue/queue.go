// Package queue carries embedding batches from the pipeline producer to the
// embed workers through a bounded in-memory channel.
package queue

import (
	"context"
	"sync"

	"github.com/jasonherngwang/peoples-court/pkg/metrics"
)

const defaultQueueCapacity = 64

// Job is one embedding batch: parallel slices of submission ids and the
// texts to encode for them.
type Job struct {
	Seq   int
	IDs   []string
	Texts []string
}

// Len returns the number of submissions in the batch.
func (j Job) Len() int { return len(j.IDs) }

// Queue provides bounded enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a job without blocking.
	// Returns false if the queue is full or closed.
	Enqueue(ctx context.Context, j Job) bool

	// Put adds a job, waiting for room until ctx is done.
	Put(ctx context.Context, j Job) error

	// Dequeue returns a channel that receives jobs until the queue is
	// closed and drained.
	Dequeue(ctx context.Context) <-chan Job

	// Len returns the current number of queued jobs.
	Len(ctx context.Context) int

	// Close stops accepting jobs. Queued jobs remain readable.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	jobs     chan Job
	capacity int

	mu     sync.RWMutex
	closed bool
}

var _ Queue = (*InMemoryQueue)(nil)

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan Job, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0.0)

	return q
}

// Enqueue adds a job to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, j Job) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return false
	}

	select {
	case q.jobs <- j:
		q.enqueued()
		return true
	case <-ctx.Done():
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return false
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return false
	}
}

// Put blocks until the job is queued, the queue is closed or ctx is done.
// The read lock is held while waiting so Close cannot race the send.
func (q *InMemoryQueue) Put(ctx context.Context, j Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		return ErrClosed
	}

	select {
	case q.jobs <- j:
		q.enqueued()
		return nil
	case <-ctx.Done():
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return ctx.Err()
	}
}

func (q *InMemoryQueue) enqueued() {
	metrics.RecordQueueEnqueue()
	q.observe(len(q.jobs))
}

func (q *InMemoryQueue) observe(size int) {
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
}

// Dequeue returns a channel that will receive jobs as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Job {
	out := make(chan Job)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case j, ok := <-q.jobs:
				if !ok {
					return
				}
				metrics.RecordQueueDequeue()
				q.observe(len(q.jobs))
				select {
				case out <- j:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Len returns the current number of queued jobs.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.jobs)
	q.observe(size)
	return size
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
