package broker

import (
	"sync"

	"borealis/internal/protocol"
)

// eventQueue hands log events to a consumer that may lag arbitrarily
// without ever blocking the producer. Events are buffered in memory and
// delivered in order; nothing is dropped.
type eventQueue struct {
	mu     sync.Mutex
	buf    []protocol.LogEvent
	closed bool
	wake   chan struct{}
	out    chan protocol.LogEvent
}

func newEventQueue() *eventQueue {
	q := &eventQueue{
		wake: make(chan struct{}, 1),
		out:  make(chan protocol.LogEvent),
	}
	go q.pump()
	return q
}

func (q *eventQueue) push(e protocol.LogEvent) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.buf = append(q.buf, e)
	q.mu.Unlock()
	q.signal()
}

func (q *eventQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

func (q *eventQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// pump moves buffered events to the out channel. After close it drains
// what is left, then closes the channel.
func (q *eventQueue) pump() {
	for {
		q.mu.Lock()
		batch := q.buf
		q.buf = nil
		closed := q.closed
		q.mu.Unlock()

		for _, e := range batch {
			q.out <- e
		}
		if closed {
			close(q.out)
			return
		}
		<-q.wake
	}
}
