// Package queue is the FIFO of pending submissions. Unlike a plain channel
// it supports positional queries and cancellation of entries that have not
// been picked up yet, so it is a condition-variable guarded list.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hrishabh6/CodeExecutionEngine-sub001/internal/model"
)

// ErrClosed is the poison pill: dequeue returns it once the queue is closed
// and drained, and workers exit their loop on it.
var ErrClosed = errors.New("submission queue closed")

// emaAlpha weights the rolling average of end-to-end execution durations.
const emaAlpha = 0.2

// Queue is a total-FIFO submission queue. Dequeue order matches enqueue
// order across all producers.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []*model.SubmissionRequest
	closed bool

	avgMs  float64
	hasAvg bool
}

func New() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends a submission.
func (q *Queue) Enqueue(req *model.SubmissionRequest) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.items = append(q.items, req)
	q.cond.Signal()
	return nil
}

// DequeueBlocking removes and returns the head, blocking until one is
// available, the context is cancelled, or the queue is closed and drained.
func (q *Queue) DequeueBlocking(ctx context.Context) (*model.SubmissionRequest, error) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			q.cond.Broadcast()
		case <-stop:
		}
	}()

	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(q.items) > 0 {
			head := q.items[0]
			q.items = q.items[1:]
			return head, nil
		}
		if q.closed {
			return nil, ErrClosed
		}
		q.cond.Wait()
	}
}

// PositionOf returns the zero-based index from head, or nil if the
// submission is not queued. Positions are recomputed on read, never stored.
func (q *Queue) PositionOf(id string) *int {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, item := range q.items {
		if item.SubmissionID == id {
			pos := i
			return &pos
		}
	}
	return nil
}

// Size returns the number of pending submissions.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Cancel removes the submission wherever it sits in the queue. It returns
// false when the entry is absent, i.e. already being processed or unknown.
func (q *Queue) Cancel(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, item := range q.items {
		if item.SubmissionID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// RecordDuration folds one end-to-end execution duration into the rolling
// average workers publish after each run.
func (q *Queue) RecordDuration(d time.Duration) {
	ms := float64(d.Milliseconds())
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.hasAvg {
		q.avgMs = ms
		q.hasAvg = true
		return
	}
	q.avgMs = emaAlpha*ms + (1-emaAlpha)*q.avgMs
}

// AverageDuration returns the current rolling average, zero before any run
// has completed.
func (q *Queue) AverageDuration() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	return time.Duration(q.avgMs) * time.Millisecond
}

// EstimatedWait is size x rolling average execution time.
func (q *Queue) EstimatedWait() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	return time.Duration(float64(len(q.items)) * q.avgMs * float64(time.Millisecond))
}

// Close marks the queue closed and wakes all blocked consumers. Pending
// items remain dequeueable so a drain can finish.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}
