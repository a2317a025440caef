package bridge

import (
	"errors"
	"sync"
)

var (
	// ErrHandoffClosed is returned by Send after the producer handle has
	// been closed by the coordinator.
	ErrHandoffClosed = errors.New("handoff: queue closed")

	// ErrReceiverGone is returned by Send after the sound worker detached.
	ErrReceiverGone = errors.New("handoff: receiver gone")
)

// DefaultQueueCapacity bounds the records buffered between the two workers.
const DefaultQueueCapacity = 64

// handoff is the single-producer/single-consumer queue between the line
// source and the sound worker.
//
// Close is the producer-side drop: the consumer drains what is buffered and
// then sees end-of-stream. Detach is the consumer-side drop: the producer's
// next Send fails. Neither side can make the other panic.
type handoff struct {
	ch chan Record

	mu     sync.RWMutex
	closed bool

	done      chan struct{}
	closeOnce sync.Once

	gone       chan struct{}
	detachOnce sync.Once
}

func newHandoff(capacity int) *handoff {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &handoff{
		ch:   make(chan Record, capacity),
		done: make(chan struct{}),
		gone: make(chan struct{}),
	}
}

// Send enqueues rec, blocking while the queue is full.
func (h *handoff) Send(rec Record) error {
	select {
	case <-h.gone:
		return ErrReceiverGone
	default:
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return ErrHandoffClosed
	}
	select {
	case h.ch <- rec:
		return nil
	case <-h.done:
		return ErrHandoffClosed
	case <-h.gone:
		return ErrReceiverGone
	}
}

// Receive returns the consumer side. It is closed after Close, once every
// blocked Send has returned.
func (h *handoff) Receive() <-chan Record {
	return h.ch
}

// Close drops the producer handle. Safe to call more than once.
func (h *handoff) Close() {
	h.closeOnce.Do(func() {
		// Wake any sender parked on a full queue before taking the write
		// lock, otherwise Close would wait on it forever.
		close(h.done)
		h.mu.Lock()
		h.closed = true
		close(h.ch)
		h.mu.Unlock()
	})
}

// Detach marks the consumer as gone. Safe to call more than once.
func (h *handoff) Detach() {
	h.detachOnce.Do(func() { close(h.gone) })
}

// Len reports the number of buffered records.
func (h *handoff) Len() int {
	return len(h.ch)
}
