package event

import (
	"context"
	"sync"

	"hudchat/config"
)

// Sink accepts events from transport goroutines.
type Sink interface {
	Push(c Command) bool
}

// Queue is a multi-producer single-consumer ordered event queue.
// Commands come out in the order Push calls completed.
type Queue struct {
	ch     chan Command
	done   chan struct{}
	closer sync.Once
}

// NewQueue returns a queue buffering up to size commands.  Pushers
// block while the buffer is full.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = config.DefaultQueueSize
	}
	return &Queue{
		ch:   make(chan Command, size),
		done: make(chan struct{}),
	}
}

// Push enqueues c.  It reports false once the queue is closed.
func (q *Queue) Push(c Command) bool {
	select {
	case <-q.done:
		return false
	default:
	}
	select {
	case q.ch <- c:
		return true
	case <-q.done:
		return false
	}
}

// Drain hands every command queued right now to fn, without waiting
// for more.  It stops at the first error fn returns.
func (q *Queue) Drain(fn func(Command) error) (int, error) {
	n := 0
	for {
		select {
		case c := <-q.ch:
			n++
			if err := fn(c); err != nil {
				return n, err
			}
		default:
			return n, nil
		}
	}
}

// Next blocks until a command is available or ctx is done.
func (q *Queue) Next(ctx context.Context) (Command, error) {
	select {
	case c := <-q.ch:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len reports the number of queued commands.
func (q *Queue) Len() int { return len(q.ch) }

// Close releases blocked pushers and rejects later ones.  Commands
// already queued can still be drained.
func (q *Queue) Close() {
	q.closer.Do(func() { close(q.done) })
}
