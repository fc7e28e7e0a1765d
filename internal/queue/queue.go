// Package queue implements the bounded in-process FIFO of pending jobs
// the Worker Pool drains. Enqueue/dequeue live behind one mutex, kept
// deliberately small per the concurrency model: the signal channel is the
// only thing a waiter blocks on, never the lock itself.
package queue

import (
	"errors"
	"sync"
	"time"

	"judge-core/internal/language"
)

// ErrQueueFull is returned by Enqueue when the queue is at capacity.
var ErrQueueFull = errors.New("queue full")

// Request mirrors the Service caller's submit request, frozen at enqueue
// time.
type Request struct {
	SourceCode  string
	Language    string
	Stdin       string
	TimeLimit   *float64
	MemoryLimit *int
}

// Job is the in-memory unit of work created by the Service on enqueue and
// destroyed once a worker finishes it (success or failure).
type Job struct {
	SubmissionID string
	Request      Request
	UserID       string
	Limits       language.Limits
	EnqueuedAt   time.Time
}

// Queue is a bounded FIFO. The zero value is not usable; construct with
// New.
type Queue struct {
	mu       sync.Mutex
	items    []Job
	reserved int
	capacity int
	signal   chan struct{}
}

// New builds a Queue with the given capacity.
func New(capacity int) *Queue {
	return &Queue{
		items:    make([]Job, 0, capacity),
		capacity: capacity,
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue appends job to the tail, or fails with ErrQueueFull. On success
// it publishes a non-blocking "job available" signal so an idle worker can
// wake promptly; a full signal channel means a wake is already pending, so
// the send is simply dropped rather than blocking the producer.
//
// Enqueue is a convenience wrapper around Reserve+Commit for callers that
// have no work to do between admission and publication. A caller that
// must do something else first and be able to back out — the Service
// creating the submission row only once a slot is actually held — should
// call Reserve and Commit/Release directly instead, so the row is never
// created for a job the queue never accepted, and a job is never visible
// to a worker before its row exists.
func (q *Queue) Enqueue(job Job) error {
	if err := q.Reserve(); err != nil {
		return err
	}
	q.Commit(job)
	return nil
}

// Reserve atomically claims one slot of capacity, or fails with
// ErrQueueFull. A reserved slot counts against capacity immediately but
// the job it will hold is not yet visible to Dequeue; the caller must
// follow up with exactly one Commit or Release.
func (q *Queue) Reserve() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items)+q.reserved >= q.capacity {
		return ErrQueueFull
	}
	q.reserved++
	return nil
}

// Commit publishes job into a slot previously claimed by Reserve and
// signals a waiting dispatcher. EnqueuedAt is stamped here, not by the
// caller, so every job's wait-time accounting starts from the moment it
// actually becomes visible to a worker.
func (q *Queue) Commit(job Job) {
	job.EnqueuedAt = time.Now()

	q.mu.Lock()
	q.reserved--
	q.items = append(q.items, job)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Release gives back a slot previously claimed by Reserve without ever
// publishing a job into it, used when whatever the caller needed to do
// between Reserve and Commit failed.
func (q *Queue) Release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.reserved > 0 {
		q.reserved--
	}
}

// Dequeue returns the oldest job, or ok=false if the queue is empty.
func (q *Queue) Dequeue() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Job{}, false
	}
	job := q.items[0]
	q.items = q.items[1:]
	return job, true
}

// Size returns the current number of pending jobs.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// IsFull reports whether the queue is at capacity, counting slots
// currently reserved (Reserve called, Commit/Release pending) as full.
func (q *Queue) IsFull() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)+q.reserved >= q.capacity
}

// Clear drops all pending jobs, used when the pool stops accepting new
// work. In-flight jobs already dequeued by a worker are unaffected.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = q.items[:0]
}

// ExpireOlderThan removes and returns every pending job that has sat in
// the queue longer than maxWait, preserving the relative order of what's
// left. A job already dequeued by a worker is untouched, since it's no
// longer in items. EnqueuedAt is stamped in Commit before the lock is
// taken, so concurrent commits can land slightly out of stamp order; this
// scans the whole backlog rather than assuming the oldest job is always at
// the front.
func (q *Queue) ExpireOlderThan(maxWait time.Duration) []Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	cutoff := time.Now().Add(-maxWait)
	kept := q.items[:0:0]
	var expired []Job
	for _, job := range q.items {
		if job.EnqueuedAt.Before(cutoff) {
			expired = append(expired, job)
			continue
		}
		kept = append(kept, job)
	}
	q.items = kept
	return expired
}

// Signal returns the channel a dispatcher selects on to learn that an
// enqueue happened. It is not a future: a receive only means "check the
// queue", since another consumer may have already drained it.
func (q *Queue) Signal() <-chan struct{} {
	return q.signal
}
