package queue

// Option configures a CommitQueue.
type Option func(*CommitQueue)

// WithCapacity bounds the number of pending jobs. Non-positive values keep
// the default.
func WithCapacity(capacity int) Option {
	return func(q *CommitQueue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// WithCoalescing controls whether a job for a day and filter that is already
// pending is folded into the pending one. Enabled by default.
func WithCoalescing(enabled bool) Option {
	return func(q *CommitQueue) {
		q.coalesce = enabled
	}
}
