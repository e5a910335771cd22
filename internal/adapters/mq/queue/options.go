package queue

// Option configures an InMemoryQueue.
type Option func(*InMemoryQueue)

// WithCapacity bounds how many embed batches may wait for a worker. Values
// below one keep the default.
func WithCapacity(batches int) Option {
	return func(q *InMemoryQueue) {
		if batches > 0 {
			q.capacity = batches
		}
	}
}
