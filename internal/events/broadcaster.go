package events

import (
	"errors"
	"sync"
)

// SerialData is the event name carried by every record.
const SerialData = "serial-data"

// ErrClosed is returned by Publish once the broadcaster has been closed.
var ErrClosed = errors.New("events: broadcaster closed")

// Event is one record as delivered to subscribers.
type Event struct {
	Event   string  `json:"event"`
	Payload Payload `json:"payload"`
}

// Payload carries the record's fields in order.
type Payload struct {
	Values []string `json:"values"`
}

// Broadcaster fans out records from the line source to N subscribers.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[*Subscriber]struct{}
	closed      bool
}

// Subscriber receives events from the broadcaster.
type Subscriber struct {
	C    chan Event
	done chan struct{}
	once sync.Once
}

// Done is closed when the subscriber is removed or the broadcaster closes.
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

func (s *Subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

// NewBroadcaster creates a new broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[*Subscriber]struct{}),
	}
}

// Subscribe registers a new subscriber with a buffer of size events.
func (b *Broadcaster) Subscribe(size int) *Subscriber {
	if size <= 0 {
		size = 64
	}
	s := &Subscriber{
		C:    make(chan Event, size),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.stop()
		return s
	}
	b.subscribers[s] = struct{}{}
	return s
}

// Unsubscribe removes a subscriber and signals it to stop.
func (b *Broadcaster) Unsubscribe(s *Subscriber) {
	b.mu.Lock()
	delete(b.subscribers, s)
	b.mu.Unlock()
	s.stop()
}

// SubscriberCount returns the number of active subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Publish delivers values to every subscriber without blocking. Slow
// subscribers get the event dropped rather than stalling the serial reader.
func (b *Broadcaster) Publish(values []string) error {
	ev := Event{Event: SerialData, Payload: Payload{Values: values}}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	for s := range b.subscribers {
		select {
		case s.C <- ev:
		default:
			// subscriber too slow, drop to keep the pipeline moving
		}
	}
	return nil
}

// Close stops every subscriber. Later Publish calls fail with ErrClosed.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subscribers {
		s.stop()
		delete(b.subscribers, s)
	}
}
