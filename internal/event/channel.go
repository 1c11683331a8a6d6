package event

import (
	"context"
	"sync"
)

// DefaultBuffer is the channel capacity used by the flow controllers.
const DefaultBuffer = 64

// Channel is a buffered FIFO with a single consumer. Send never blocks past
// Close, and Close never races with senders because the data channel itself
// is never closed.
type Channel struct {
	ch     chan Event
	closed chan struct{}
	once   sync.Once
}

func NewChannel(size int) *Channel {
	if size <= 0 {
		size = DefaultBuffer
	}
	return &Channel{ch: make(chan Event, size), closed: make(chan struct{})}
}

// Send enqueues e, waiting for room if the buffer is full. It reports false
// when the channel was torn down before e could be queued.
func (c *Channel) Send(e Event) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.ch <- e:
		return true
	case <-c.closed:
		return false
	}
}

// Events exposes the receive side for select loops.
func (c *Channel) Events() <-chan Event {
	return c.ch
}

// Done is closed on teardown.
func (c *Channel) Done() <-chan struct{} {
	return c.closed
}

// Drain hands every event to fn, in order, until ctx is cancelled or the
// channel is closed.
func (c *Channel) Drain(ctx context.Context, fn func(Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		case e := <-c.ch:
			fn(e)
		}
	}
}

// Close tears the channel down. Queued events are dropped.
func (c *Channel) Close() {
	c.once.Do(func() { close(c.closed) })
}
