// Package queue carries snapshot commit jobs from schedulers to the committer.
//
// The queue is bounded and never blocks the caller: a full queue rejects the
// job. Two jobs for the same day and filter would write the same records, so
// while one is pending a second is folded into it.
package queue

import (
	"context"
	"sync"

	"github.com/okian/healthscore/internal/domain/calendar"
	"github.com/okian/healthscore/internal/domain/model"
	"github.com/okian/healthscore/pkg/metrics"
)

const defaultCapacity = 64

// Job asks the committer to score the roster under Filter and append one
// history record per client for Day.
type Job struct {
	ID     string
	Day    calendar.Date
	Filter model.Filter
}

func (j Job) key() string { return j.Day.String() + "|" + j.Filter.String() }

// CommitQueue is a bounded FIFO of commit jobs.
type CommitQueue struct {
	mu       sync.Mutex
	jobs     chan Job
	pending  map[string]string // job key -> id of the pending job
	capacity int
	coalesce bool
	closed   bool
}

// New returns an open queue.
func New(opts ...Option) *CommitQueue {
	q := &CommitQueue{capacity: defaultCapacity, coalesce: true}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan Job, q.capacity)
	q.pending = make(map[string]string, q.capacity)
	metrics.UpdateCommitQueue(0, q.capacity)
	return q
}

// Enqueue adds j and returns the id of the job that will perform it: j.ID,
// or the id of an equivalent job still waiting in the queue.
func (q *CommitQueue) Enqueue(ctx context.Context, j Job) (string, error) {
	if err := ctx.Err(); err != nil {
		metrics.RecordCommitEnqueueError("context_cancelled")
		return "", err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		metrics.RecordCommitEnqueueError("closed")
		metrics.RecordErrorByComponent("queue", "closed")
		return "", ErrClosed
	}
	k := j.key()
	if id, ok := q.pending[k]; ok && q.coalesce {
		return id, nil
	}

	select {
	case q.jobs <- j:
		q.pending[k] = j.ID
		metrics.UpdateCommitQueue(len(q.jobs), q.capacity)
		return j.ID, nil
	default:
		metrics.RecordCommitEnqueueError("full")
		metrics.RecordErrorByComponent("queue", "queue_full")
		return "", ErrFull
	}
}

// Dequeue streams jobs in submission order until the queue is closed and
// drained or ctx is done. A job leaves the pending set as it is handed out.
func (q *CommitQueue) Dequeue(ctx context.Context) <-chan Job {
	out := make(chan Job)
	go func() {
		defer close(out)
		for j := range q.jobs {
			q.mu.Lock()
			if q.pending[j.key()] == j.ID {
				delete(q.pending, j.key())
			}
			q.mu.Unlock()
			metrics.UpdateCommitQueue(len(q.jobs), q.capacity)

			select {
			case out <- j:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the number of pending jobs.
func (q *CommitQueue) Len() int { return len(q.jobs) }

// Cap returns the queue capacity.
func (q *CommitQueue) Cap() int { return q.capacity }

// Close stops accepting jobs. Jobs already queued are still delivered.
func (q *CommitQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	return nil
}
