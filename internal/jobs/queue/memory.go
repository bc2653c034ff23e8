package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue is an in-process queue for single-binary development and tests. It has no leases:
// a delivery that is neither acked nor nacked is simply gone, so use redis where redelivery
// after a crash matters.
type MemoryQueue struct {
	ch     chan Task
	mu     sync.RWMutex
	closed bool
}

var _ Dispatcher = (*MemoryQueue)(nil)
var _ Consumer = (*MemoryQueue)(nil)
var _ Nacker = (*MemoryQueue)(nil)

func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &MemoryQueue{ch: make(chan Task, capacity)}
}

// Enqueue never blocks: a full buffer returns ErrFull.
func (q *MemoryQueue) Enqueue(_ context.Context, task Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now().UTC()
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case q.ch <- task:
		return nil
	default:
		return ErrFull
	}
}

func (q *MemoryQueue) Receive(ctx context.Context, wait time.Duration) (*Delivery, error) {
	if wait <= 0 {
		wait = time.Second
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case task, ok := <-q.ch:
		if !ok {
			return nil, ErrClosed
		}
		now := time.Now()
		return &Delivery{Task: task, receivedAt: now}, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *MemoryQueue) Ack(context.Context, *Delivery) error { return nil }

// Nack puts the task back after delay. The timer is dropped if the queue closes first.
func (q *MemoryQueue) Nack(_ context.Context, d *Delivery, delay time.Duration) error {
	if d == nil {
		return nil
	}
	task := d.Task
	time.AfterFunc(delay, func() {
		q.mu.RLock()
		defer q.mu.RUnlock()
		if q.closed {
			return
		}
		select {
		case q.ch <- task:
		default:
		}
	})
	return nil
}

func (q *MemoryQueue) RequeueExpired(context.Context) (int, error) { return 0, nil }

func (q *MemoryQueue) Len() int { return len(q.ch) }

func (q *MemoryQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}
