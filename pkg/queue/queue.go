// Package queue serializes asynchronous provider operations: each
// operation starts only after the previous one has settled, success or
// failure, regardless of which caller issued it.
package queue

import (
	"context"
	"sync"
)

// Queue is a strict-FIFO serializer. The zero value is ready to use.
type Queue struct {
	mu   sync.Mutex
	tail chan struct{}
}

// Do runs fn once every previously enqueued operation has settled.
// If ctx is canceled while waiting, fn never runs and the slot is
// released so later operations are not blocked.
func (q *Queue) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	q.mu.Lock()
	prev := q.tail
	done := make(chan struct{})
	q.tail = done
	q.mu.Unlock()
	defer close(done)

	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}
